// Package formatter declares the contract the pipeline calls into at
// each phase transition and for each finding, plus a registry mapping
// formatter names to implementations. Built-ins cover human-readable
// reports (pretty, summary), machine-readable output (json), the
// emitted cleanup script (sh) and a completion timestamp (stamp);
// additional formatters register under their own names.
package formatter

import "github.com/ivoronin/lint/internal/lint"

// ItemKind discriminates the finding records.
type ItemKind int

const (
	KindDuplicateFile ItemKind = iota
	KindDuplicateDir
	KindEmptyFile
	KindEmptyDir
	KindBadUID
	KindBadGID
	KindBrokenSymlink
	KindNonStripped
	// KindUniqueFile carries the partial digest of a file demoted to
	// UNIQUE, emitted only under the write-unfinished option.
	KindUniqueFile
	KindProgress
)

// Role distinguishes the kept member of a group from the ones it
// subsumes, for DUPLICATE_FILE / DUPLICATE_DIR items.
type Role int

const (
	RoleOriginal Role = iota
	RoleDuplicate
)

// Item is one discriminated finding or progress update emitted to a
// Formatter.
type Item struct {
	Kind ItemKind

	// DUPLICATE_FILE / DUPLICATE_DIR
	GroupID int
	Path    string
	Size    int64
	Digest  string
	Role    Role
	// OriginalPath names the kept path this item is a duplicate of.
	// Empty for Role == RoleOriginal.
	OriginalPath string

	// EMPTY_FILE / EMPTY_DIR / BROKEN_SYMLINK / NON_STRIPPED / BAD_UID / BAD_GID
	// reuse Path (and Size where meaningful).
	UID, GID uint32

	// PROGRESS
	Phase           lint.Phase
	FilesScanned    int64
	BytesScanned    int64
	BytesRead       int64
	DuplicatesFound int64
}

// Formatter is the capability set a registered output plugin
// implements.
type Formatter interface {
	Configure(kv map[string]string) error
	Accept(item Item) error
	Flush() error
	OnStateChange(phase lint.Phase) error
}

// Factory constructs a fresh Formatter instance, given the path argument
// from its FMT[:PATH] output spec (empty string means the formatter's own
// default, typically stdout).
type Factory func(path string) (Formatter, error)

// Registry maps formatter names to factories. Multiple formatters may
// share one path (e.g. "stdout") -- the registry does not deduplicate
// paths, callers open/configure independently.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a formatter factory under name. Built-in formatters call
// this from their own init-style registration helpers (see Builtins).
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// SplitSpec splits an output spec "FMT[:PATH]" into its formatter name
// and path (empty when the spec has no path part).
func SplitSpec(spec string) (name, path string) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, ""
}

// New constructs a Formatter by name and path.
func (r *Registry) New(name, path string) (Formatter, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &lint.Error{Kind: lint.KindConfig, Err: unknownFormatterError(name)}
	}
	return f(path)
}

func unknownFormatterError(name string) error {
	return errUnknownFormatter{name}
}

type errUnknownFormatter struct{ name string }

func (e errUnknownFormatter) Error() string { return "unknown formatter: " + e.name }
