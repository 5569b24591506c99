package config

import (
	"fmt"
	"strings"
)

// LintType identifies one kind of lint finding.
type LintType string

const (
	LintDuplicateFile LintType = "duplicate_file"
	LintDuplicateDir  LintType = "duplicate_dir"
	LintEmptyFile     LintType = "empty_file"
	LintEmptyDir      LintType = "empty_dir"
	LintBadUID        LintType = "bad_uid"
	LintBadGID        LintType = "bad_gid"
	LintBrokenSymlink LintType = "broken_symlink"
	LintNonStripped   LintType = "non_stripped"
)

// defaultLintTypes is the full set of detectors enabled when the user
// supplies no --types selector at all.
var defaultLintTypes = []LintType{
	LintDuplicateFile, LintDuplicateDir, LintEmptyFile, LintEmptyDir,
	LintBadUID, LintBadGID, LintBrokenSymlink, LintNonStripped,
}

// LintSelector is the enabled/disabled set of lint detectors.
type LintSelector map[LintType]bool

// DefaultLintSelector enables every built-in detector.
func DefaultLintSelector() LintSelector {
	s := make(LintSelector, len(defaultLintTypes))
	for _, t := range defaultLintTypes {
		s[t] = true
	}
	return s
}

// Enabled reports whether t is enabled in this selector.
func (s LintSelector) Enabled(t LintType) bool { return s[t] }

// separatorOf returns the separator used in a --types spec: the first
// character that is not a letter, an underscore or a "+"/"-" sign,
// defaulting to comma when none is found. Comma, colon and semicolon
// all work without the user declaring which one they picked.
func separatorOf(spec string) byte {
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if c == '+' || c == '-' || c == '_' {
			continue
		}
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return c
	}
	return ','
}

// ParseLintSelector parses a "+"/"-" prefixed, comma/colon/semicolon
// separated lint-type selector string into a LintSelector seeded from
// DefaultLintSelector. An empty spec returns the default selector
// unchanged.
func ParseLintSelector(spec string) (LintSelector, error) {
	sel := DefaultLintSelector()
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return sel, nil
	}

	sep := separatorOf(spec)
	for _, tok := range strings.Split(spec, string(sep)) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		sign := byte('+')
		if tok[0] == '+' || tok[0] == '-' {
			sign = tok[0]
			tok = tok[1:]
		}
		lt := LintType(strings.ToLower(tok))
		if !isKnownLintType(lt) {
			return nil, fmt.Errorf("unknown lint type %q", tok)
		}
		sel[lt] = sign == '+'
	}
	return sel, nil
}

func isKnownLintType(t LintType) bool {
	for _, known := range defaultLintTypes {
		if known == t {
			return true
		}
	}
	return false
}
