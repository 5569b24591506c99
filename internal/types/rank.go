package types

import (
	"strings"

	"github.com/ivoronin/lint/internal/config"
)

// ChooseOriginal selects the kept member of a resolved group. The
// criteria are applied lexicographically: first criterion primary,
// later ones tiebreakers, case of each criterion selecting ascending
// vs descending. Panics if records is empty -- callers only reach here
// with a non-empty group.
func ChooseOriginal(records []*FileRecord, order []config.SortCriterion) *FileRecord {
	best := records[0]
	for _, r := range records[1:] {
		if compareByOrder(r, best, order) < 0 {
			best = r
		}
	}
	return best
}

func compareByOrder(a, b *FileRecord, order []config.SortCriterion) int {
	for _, c := range order {
		cmp := compareOne(a, b, c.Key)
		if c.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

// compareOne compares a and b on a single sort key, ascending.
func compareOne(a, b *FileRecord, key byte) int {
	switch key {
	case 'm':
		switch {
		case a.ModTime.Before(b.ModTime):
			return -1
		case a.ModTime.After(b.ModTime):
			return 1
		default:
			return 0
		}
	case 'p':
		// Preferred roots sort first, so tagged copies win original
		// selection whenever the criteria include 'p'.
		return preferredRank(a) - preferredRank(b)
	default: // 'a': alphabetical path, also the fallback for unknown keys
		return strings.Compare(a.Path, b.Path)
	}
}

func preferredRank(r *FileRecord) int {
	if r.Preferred {
		return 0
	}
	return 1
}
