package types

import (
	"testing"
	"time"

	"github.com/ivoronin/lint/internal/config"
)

func TestChooseOriginalDefaultOrderPrefersPreferredThenOldestThenPath(t *testing.T) {
	order, _ := config.ParseSortCriteria("pma")
	now := time.Now()

	a := &FileRecord{Path: "z/file", ModTime: now, Preferred: true}
	b := &FileRecord{Path: "a/file", ModTime: now.Add(-time.Hour), Preferred: false}

	got := ChooseOriginal([]*FileRecord{a, b}, order)
	if got != a {
		t.Errorf("expected preferred record to win regardless of mtime/path")
	}
}

func TestChooseOriginalFallsBackToModTime(t *testing.T) {
	order, _ := config.ParseSortCriteria("pma")
	older := &FileRecord{Path: "z", ModTime: time.Unix(100, 0)}
	newer := &FileRecord{Path: "a", ModTime: time.Unix(200, 0)}

	got := ChooseOriginal([]*FileRecord{newer, older}, order)
	if got != older {
		t.Errorf("expected older file to win when neither is preferred")
	}
}

func TestChooseOriginalFallsBackToPath(t *testing.T) {
	order, _ := config.ParseSortCriteria("pma")
	same := time.Unix(100, 0)
	x := &FileRecord{Path: "b", ModTime: same}
	y := &FileRecord{Path: "a", ModTime: same}

	got := ChooseOriginal([]*FileRecord{x, y}, order)
	if got != y {
		t.Errorf("expected alphabetically first path to win final tiebreak")
	}
}

func TestChooseOriginalDescendingCriterion(t *testing.T) {
	order, _ := config.ParseSortCriteria("A") // uppercase = descending path
	x := &FileRecord{Path: "a"}
	y := &FileRecord{Path: "z"}

	got := ChooseOriginal([]*FileRecord{x, y}, order)
	if got != y {
		t.Errorf("expected descending path order to pick the lexicographically last path")
	}
}
