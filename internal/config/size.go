package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// sizeFormatTable maps size suffixes to multipliers: b=512 (disk
// blocks), c=1 (chars), w=2 (words), and the k/m/g/t/p/e ladder with
// bare letters decimal (k=10^3) and the *b forms IEC (kb=1024).
var sizeFormatTable = map[string]float64{
	"b":  512,
	"c":  1,
	"w":  2,
	"k":  1e3,
	"kb": 1024,
	"m":  1e6,
	"mb": 1024 * 1024,
	"g":  1e9,
	"gb": 1024 * 1024 * 1024,
	"t":  1e12,
	"tb": 1024 * 1024 * 1024 * 1024,
	"p":  1e15,
	"pb": 1024 * 1024 * 1024 * 1024 * 1024,
	"e":  1e18,
	"eb": 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
}

// parseSizeString parses a single size value such as "100", "1k", "4.5MB"
// using the suffix table above. A bare number with no suffix is bytes.
func parseSizeString(spec string) (uint64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty size")
	}

	i := 0
	for i < len(spec) && (spec[i] == '.' || spec[i] == '-' || spec[i] == '+' || (spec[i] >= '0' && spec[i] <= '9')) {
		i++
	}
	numPart, suffix := spec[:i], strings.TrimSpace(spec[i:])

	decimal, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("%q does not look like a number", spec)
	}
	if decimal < 0 {
		return 0, fmt.Errorf("negative sizes are no good idea")
	}
	if suffix == "" {
		return uint64(math.Round(decimal)), nil
	}

	base, ok := sizeFormatTable[strings.ToLower(suffix)]
	if !ok {
		return 0, fmt.Errorf("given format specifier %q not found", suffix)
	}
	return uint64(math.Round(decimal * base)), nil
}

// SizeRange is the parsed [min,max] size bound for --size.
type SizeRange struct {
	Min, Max uint64
}

// ParseSizeRange parses a "min-max" or bare "value" spec.
//
// The maximum is seeded to the largest representable value before
// parsing, so a bare value with no "-" yields min=value,
// max=MaxUint64: "at least this size", not "exactly this size".
func ParseSizeRange(rangeSpec string) (SizeRange, error) {
	r := SizeRange{Min: 0, Max: math.MaxUint64}

	parts := strings.SplitN(rangeSpec, "-", 2)
	if parts[0] != "" {
		min, err := parseSizeString(parts[0])
		if err != nil {
			return r, err
		}
		r.Min = min
	}
	if len(parts) == 2 && parts[1] != "" {
		max, err := parseSizeString(parts[1])
		if err != nil {
			return r, err
		}
		r.Max = max
	}

	if r.Max < r.Min {
		return r, fmt.Errorf("max is smaller than min")
	}
	return r, nil
}
