package formatter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ivoronin/lint/internal/lint"
)

// shFormatter emits the cleanup as a plain POSIX shell script the user
// can read and choose to run. The pipeline itself never deletes or
// relinks anything; which path survives is already decided
// (Role/OriginalPath on each Item), and this formatter only renders
// that decision as shell lines.
type shFormatter struct {
	out    *bufio.Writer
	f      io.Closer
	closed bool
}

func newShFormatter(path string) (Formatter, error) {
	if path == "" {
		path = "dupes.sh"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#!/bin/sh")
	fmt.Fprintln(w, "# generated dedup script -- review before running")
	fmt.Fprintln(w, "set -e")
	return &shFormatter{out: w, f: f}, nil
}

func (s *shFormatter) Configure(map[string]string) error { return nil }

func (s *shFormatter) Accept(item Item) error {
	switch item.Kind {
	case KindDuplicateFile:
		if item.Role != RoleDuplicate {
			return nil
		}
		fmt.Fprintf(s.out, "# duplicate of %s (%d bytes)\n", shQuote(item.OriginalPath), item.Size)
		fmt.Fprintf(s.out, "rm -- %s\n", shQuote(item.Path))
	case KindDuplicateDir:
		if item.Role != RoleDuplicate {
			return nil
		}
		fmt.Fprintf(s.out, "# duplicate directory of %s\n", shQuote(item.OriginalPath))
		fmt.Fprintf(s.out, "rm -rf -- %s\n", shQuote(item.Path))
	case KindEmptyFile, KindEmptyDir:
		fmt.Fprintf(s.out, "rm -rf -- %s\n", shQuote(item.Path))
	case KindBrokenSymlink:
		fmt.Fprintf(s.out, "rm -- %s\n", shQuote(item.Path))
	}
	return nil
}

func (s *shFormatter) Flush() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.out.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}

func (s *shFormatter) OnStateChange(phase lint.Phase) error {
	if phase == lint.PhaseSummary {
		return s.Flush()
	}
	return nil
}

// shQuote wraps a path in single quotes, escaping embedded single quotes
// the standard POSIX shell way.
func shQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
