package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseModTimeFilter parses a modification-time filter: a numeric
// epoch timestamp, an ISO-8601 timestamp, or a path to a file
// containing one of those (the file's content is read and parsed the
// same way -- a prior run's "stamp" output slots in directly).
func ParseModTimeFilter(spec string) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return time.Time{}, nil
	}

	if t, err := parseTimeSpec(spec); err == nil {
		return t, nil
	}

	data, err := os.ReadFile(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("mtime filter %q is neither a timestamp nor a readable file: %w", spec, err)
	}
	return parseTimeSpec(strings.TrimSpace(string(data)))
}

func parseTimeSpec(spec string) (time.Time, error) {
	if sec, err := strconv.ParseInt(spec, 10, 64); err == nil {
		return time.Unix(sec, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", spec); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", spec); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is not a recognized timestamp", spec)
}
