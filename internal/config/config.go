// Package config turns parsed CLI flags into one immutable Config value.
//
// Config is a plain record built once by the CLI layer (cmd/lint) and
// threaded explicitly through the pipeline -- never a process-global.
// Everything inside it is immutable once the CLI hands it over.
package config

import "time"

// SymlinkPolicy controls how the traverser treats symlinks.
type SymlinkPolicy int

const (
	SymlinkIgnore SymlinkPolicy = iota
	SymlinkFollow
	SymlinkAsFile
)

// HiddenPolicy controls whether dotfiles/dot-directories are traversed.
type HiddenPolicy int

const (
	HiddenSkip HiddenPolicy = iota
	HiddenInclude
)

// Config is the complete immutable configuration for one run of the
// pipeline. Counters and the cache handle live in internal/session, not
// here -- Config holds only what the user asked for.
type Config struct {
	Roots []Root

	Threads    int
	MaxDepth   int // -1 means unlimited
	SortOrder  []SortCriterion

	Lint LintSelector

	Size  SizeRange
	ClampLow, ClampHigh ClampSpec
	HasClamp bool

	Algorithm     string
	ParanoidMemBudget int64

	ModTimeFilter     time.Time
	HasModTimeFilter  bool

	// CachePaths holds the sidecar digest cache files: every path is
	// read at startup, the first one is rewritten at shutdown.
	CachePaths []string

	Hidden                HiddenPolicy
	Symlink               SymlinkPolicy
	CrossDevice           bool
	// TrustHardlinks controls whether device+inode clusters are read
	// once through a representative (true) or verified path by path.
	TrustHardlinks bool
	// ReportHardlinked controls whether the other paths of a hardlink
	// cluster show up as duplicates in reports, or only the one
	// physical copy per cluster is considered.
	ReportHardlinked      bool
	MergeDirectories      bool
	MatchBasename         bool
	MatchExtension        bool
	MatchExtensionless    bool

	MustMatchTagged   bool
	MustMatchUntagged bool
	KeepAllTagged     bool
	KeepAllUntagged   bool

	XattrRead  bool
	XattrWrite bool

	WriteUnfinished bool

	// OutputSpecs is a repeatable FMT[:PATH] list, e.g. "summary",
	// "sh:dedupe.sh".
	OutputSpecs []string
	// FormatterKV carries "FMT:KEY[=VALUE]" options, keyed by formatter
	// name, handed to each formatter's Configure call.
	FormatterKV map[string]map[string]string
}

// Default returns a Config with every field at its documented default:
// all threads available, no depth limit, default "pma" sort order,
// every lint type enabled, no upper size bound, the bastard hash,
// symlinks ignored, hidden files skipped, no cross-device traversal,
// hardlinks clustered and reported, and the pretty/summary report plus
// the emitted cleanup script as outputs.
func Default(threads int) Config {
	sortOrder, _ := ParseSortCriteria("")
	return Config{
		Threads:           threads,
		MaxDepth:          -1,
		SortOrder:         sortOrder,
		Lint:              DefaultLintSelector(),
		// Empty files are lint of their own kind, not duplicate
		// candidates, so the default size range starts at one byte.
		Size:              SizeRange{Min: 1, Max: ^uint64(0)},
		Algorithm:         "bastard",
		ParanoidMemBudget: 256 << 20,
		Hidden:            HiddenSkip,
		Symlink:           SymlinkIgnore,
		TrustHardlinks:    true,
		ReportHardlinked:  true,
		OutputSpecs:       []string{"pretty", "summary", "sh:lint.sh"},
	}
}
