package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ClampSpec is one endpoint of the clamp range: either an absolute
// byte offset, or a fraction of the file's size.
type ClampSpec struct {
	Fraction  float64 // used when IsFraction
	Absolute  uint64  // used when !IsFraction
	IsFraction bool
}

// Resolve returns the absolute byte offset of this clamp spec for a file
// of the given size.
func (c ClampSpec) Resolve(fileSize int64) int64 {
	if !c.IsFraction {
		if c.Absolute > uint64(fileSize) {
			return fileSize
		}
		return int64(c.Absolute)
	}
	off := int64(c.Fraction * float64(fileSize))
	if off > fileSize {
		return fileSize
	}
	if off < 0 {
		return 0
	}
	return off
}

// ParseClamp parses a clamp endpoint: a fraction with "%" or "." (e.g.
// "5%" or "0.05"), or an absolute byte offset parsed via the same suffix
// table as --size (e.g. "4k").
func ParseClamp(spec string) (ClampSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ClampSpec{}, fmt.Errorf("empty clamp spec")
	}

	if strings.HasSuffix(spec, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(spec, "%"), 64)
		if err != nil {
			return ClampSpec{}, fmt.Errorf("invalid clamp percentage %q: %w", spec, err)
		}
		return ClampSpec{Fraction: v / 100.0, IsFraction: true}, nil
	}

	if strings.Contains(spec, ".") {
		v, err := strconv.ParseFloat(spec, 64)
		if err == nil && v >= 0 && v <= 1 {
			return ClampSpec{Fraction: v, IsFraction: true}, nil
		}
	}

	abs, err := parseSizeString(spec)
	if err != nil {
		return ClampSpec{}, fmt.Errorf("invalid clamp offset %q: %w", spec, err)
	}
	return ClampSpec{Absolute: abs, IsFraction: false}, nil
}
