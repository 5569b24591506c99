package formatter

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/lint/internal/lint"
)

// prettyFormatter writes one human-readable line per finding as it
// arrives. Duplicate groups read as an original line followed by
// indented duplicate lines.
type prettyFormatter struct {
	out       io.Writer
	lastGroup int
}

func newPrettyFormatter(path string) (Formatter, error) {
	w, err := openOutput(path)
	if err != nil {
		return nil, err
	}
	return &prettyFormatter{out: w, lastGroup: -1}, nil
}

func (p *prettyFormatter) Configure(map[string]string) error { return nil }

func (p *prettyFormatter) Accept(item Item) error {
	switch item.Kind {
	case KindDuplicateFile, KindDuplicateDir:
		noun := "duplicate"
		if item.Kind == KindDuplicateDir {
			noun = "duplicate directory"
		}
		if item.Role == RoleOriginal {
			if item.GroupID != p.lastGroup {
				fmt.Fprintf(p.out, "%s (%s)\n", item.Path, humanize.IBytes(uint64(item.Size)))
				p.lastGroup = item.GroupID
			}
			return nil
		}
		fmt.Fprintf(p.out, "    %s: %s\n", noun, item.Path)
	case KindEmptyFile:
		fmt.Fprintf(p.out, "empty file: %s\n", item.Path)
	case KindEmptyDir:
		fmt.Fprintf(p.out, "empty directory: %s\n", item.Path)
	case KindBadUID:
		fmt.Fprintf(p.out, "bad uid %d: %s\n", item.UID, item.Path)
	case KindBadGID:
		fmt.Fprintf(p.out, "bad gid %d: %s\n", item.GID, item.Path)
	case KindBrokenSymlink:
		fmt.Fprintf(p.out, "broken symlink: %s\n", item.Path)
	case KindNonStripped:
		fmt.Fprintf(p.out, "non-stripped binary: %s\n", item.Path)
	case KindUniqueFile:
		fmt.Fprintf(p.out, "unfinished %s: %s\n", item.Digest, item.Path)
	}
	return nil
}

func (p *prettyFormatter) Flush() error { return nil }

func (p *prettyFormatter) OnStateChange(lint.Phase) error { return nil }
