package formatter

import (
	"encoding/json"
	"io"

	"github.com/ivoronin/lint/internal/lint"
)

// jsonFormatter buffers findings and writes them as one JSON array on
// Flush, so downstream tooling gets a single well-formed document.
type jsonFormatter struct {
	out     io.Writer
	items   []jsonItem
	flushed bool
}

// jsonItem is the serialized shape of a finding. Fields that do not
// apply to a kind are omitted.
type jsonItem struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Size     int64  `json:"size,omitempty"`
	GroupID  int    `json:"group,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Original string `json:"original,omitempty"`
	UID      uint32 `json:"uid,omitempty"`
	GID      uint32 `json:"gid,omitempty"`
}

var jsonKindNames = map[ItemKind]string{
	KindDuplicateFile: "duplicate_file",
	KindDuplicateDir:  "duplicate_dir",
	KindEmptyFile:     "empty_file",
	KindEmptyDir:      "empty_dir",
	KindBadUID:        "bad_uid",
	KindBadGID:        "bad_gid",
	KindBrokenSymlink: "broken_symlink",
	KindNonStripped:   "non_stripped",
	KindUniqueFile:    "unique_file",
}

func newJSONFormatter(path string) (Formatter, error) {
	w, err := openOutput(path)
	if err != nil {
		return nil, err
	}
	return &jsonFormatter{out: w}, nil
}

func (j *jsonFormatter) Configure(map[string]string) error { return nil }

func (j *jsonFormatter) Accept(item Item) error {
	name, ok := jsonKindNames[item.Kind]
	if !ok {
		return nil
	}
	out := jsonItem{
		Type:    name,
		Path:    item.Path,
		Size:    item.Size,
		GroupID: item.GroupID,
		Digest:  item.Digest,
		UID:     item.UID,
		GID:     item.GID,
	}
	if item.Role == RoleDuplicate {
		out.Original = item.OriginalPath
	}
	j.items = append(j.items, out)
	return nil
}

func (j *jsonFormatter) Flush() error {
	if j.flushed {
		return nil
	}
	j.flushed = true
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(j.items)
}

func (j *jsonFormatter) OnStateChange(phase lint.Phase) error {
	if phase == lint.PhaseSummary {
		return j.Flush()
	}
	return nil
}
