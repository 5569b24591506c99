package formatter

// Builtins registers the formatters the tool ships: "pretty" (the
// default human-readable report), "summary" (per-kind totals), "sh"
// (the emitted removal script), "json" (machine-readable findings) and
// "stamp" (a completion timestamp usable as the next run's
// modification-time filter).
func Builtins(r *Registry) {
	r.Register("pretty", newPrettyFormatter)
	r.Register("summary", newSummaryFormatter)
	r.Register("sh", newShFormatter)
	r.Register("json", newJSONFormatter)
	r.Register("stamp", newStampFormatter)
}
