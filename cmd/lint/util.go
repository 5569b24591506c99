package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// parseMemBudget parses a human-readable size string into bytes.
// Supports formats: "100", "1K", "1MB", "1GiB", etc.
func parseMemBudget(s string) (int64, error) {
	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(bytes), nil
}

// parseFormatterOpts folds repeated "FMT:KEY[=VALUE]" flags into a
// per-formatter option map. A key without "=VALUE" is stored with an
// empty value, which formatters treat as a boolean switch.
func parseFormatterOpts(specs []string) (map[string]map[string]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]map[string]string)
	for _, spec := range specs {
		name, rest, ok := strings.Cut(spec, ":")
		if !ok || name == "" || rest == "" {
			return nil, fmt.Errorf("invalid formatter option %q (want FMT:KEY[=VALUE])", spec)
		}
		key, value, _ := strings.Cut(rest, "=")
		if out[name] == nil {
			out[name] = make(map[string]string)
		}
		out[name][key] = value
	}
	return out, nil
}
