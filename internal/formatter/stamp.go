package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/ivoronin/lint/internal/lint"
)

// stampFormatter writes a single timestamp when the run completes.
// With the "iso8601" option the stamp is an RFC 3339 string instead of
// a Unix epoch, matching what the modification-time filter accepts, so
// the stamp of one run can feed the next run's filter directly.
type stampFormatter struct {
	out     io.Writer
	iso8601 bool
	flushed bool
}

func newStampFormatter(path string) (Formatter, error) {
	w, err := openOutput(path)
	if err != nil {
		return nil, err
	}
	return &stampFormatter{out: w}, nil
}

func (s *stampFormatter) Configure(kv map[string]string) error {
	if _, ok := kv["iso8601"]; ok {
		s.iso8601 = true
	}
	return nil
}

func (s *stampFormatter) Accept(Item) error { return nil }

func (s *stampFormatter) Flush() error {
	if s.flushed {
		return nil
	}
	s.flushed = true
	now := time.Now()
	if s.iso8601 {
		fmt.Fprintln(s.out, now.Format(time.RFC3339))
		return nil
	}
	fmt.Fprintln(s.out, now.Unix())
	return nil
}

func (s *stampFormatter) OnStateChange(phase lint.Phase) error {
	if phase == lint.PhaseSummary {
		return s.Flush()
	}
	return nil
}
