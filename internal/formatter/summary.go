package formatter

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/lint/internal/lint"
)

// summaryFormatter accumulates counts per ItemKind and prints one
// human-readable line per kind on Flush. Something is always printed,
// even when no lint was found.
type summaryFormatter struct {
	out    io.Writer
	counts map[ItemKind]int
	bytes  map[ItemKind]int64
}

func newSummaryFormatter(path string) (Formatter, error) {
	w, err := openOutput(path)
	if err != nil {
		return nil, err
	}
	return &summaryFormatter{
		out:    w,
		counts: make(map[ItemKind]int),
		bytes:  make(map[ItemKind]int64),
	}, nil
}

func (s *summaryFormatter) Configure(map[string]string) error { return nil }

func (s *summaryFormatter) Accept(item Item) error {
	if item.Kind == KindProgress || item.Kind == KindUniqueFile {
		return nil
	}
	if item.Kind == KindDuplicateFile && item.Role == RoleOriginal {
		return nil // originals are not lint -- only duplicates are reported
	}
	s.counts[item.Kind]++
	s.bytes[item.Kind] += item.Size
	return nil
}

func (s *summaryFormatter) Flush() error {
	labels := []struct {
		kind  ItemKind
		label string
	}{
		{KindDuplicateFile, "duplicate files"},
		{KindDuplicateDir, "duplicate directories"},
		{KindEmptyFile, "empty files"},
		{KindEmptyDir, "empty directories"},
		{KindBadUID, "bad-UID files"},
		{KindBadGID, "bad-GID files"},
		{KindBrokenSymlink, "broken symlinks"},
		{KindNonStripped, "non-stripped binaries"},
	}

	total := 0
	for _, l := range labels {
		if n := s.counts[l.kind]; n > 0 {
			fmt.Fprintf(s.out, "%6d %s (%s)\n", n, l.label, humanize.IBytes(uint64(s.bytes[l.kind])))
			total += n
		}
	}
	if total == 0 {
		fmt.Fprintln(s.out, "no lint found")
	}
	return nil
}

func (s *summaryFormatter) OnStateChange(phase lint.Phase) error {
	if phase == lint.PhaseSummary {
		return s.Flush()
	}
	return nil
}

func openOutput(path string) (io.Writer, error) {
	if path == "" || path == "stdout" {
		return os.Stdout, nil
	}
	if path == "stderr" {
		return os.Stderr, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
