package screener

import (
	"testing"
	"time"

	"github.com/ivoronin/lint/internal/cache"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/types"
)

func baseConfig() *config.Config {
	order, _ := config.ParseSortCriteria("pma")
	return &config.Config{
		SortOrder:      order,
		Algorithm:      "sha256",
		TrustHardlinks: true,
	}
}

func rec(path string, size int64, dev, ino uint64) *types.FileRecord {
	return &types.FileRecord{Path: path, Size: size, ModTime: time.Now(), Dev: dev, Ino: ino}
}

func disabledCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open("")
	if err != nil {
		t.Fatalf("cache.Open(\"\") failed: %v", err)
	}
	return c
}

func TestScreenerGroupsBySize(t *testing.T) {
	a := rec("/a", 100, 1, 1)
	b := rec("/b", 100, 1, 2)
	c := rec("/c", 200, 1, 3)

	result := New([]*types.FileRecord{a, b, c}, baseConfig(), disabledCache(t), false).Run()

	if result.Candidates.Len() != 1 {
		t.Fatalf("Candidates.Len() = %d, want 1", result.Candidates.Len())
	}
	if got := result.Candidates.First().Len(); got != 2 {
		t.Errorf("candidate group has %d clusters, want 2", got)
	}
	if c.Class != types.Unique {
		t.Errorf("file with unique size = %v, want Unique", c.Class)
	}
}

func TestScreenerSingletonMarkedUnique(t *testing.T) {
	a := rec("/a", 100, 1, 1)

	result := New([]*types.FileRecord{a}, baseConfig(), disabledCache(t), false).Run()

	if result.Candidates.Len() != 0 {
		t.Fatalf("Candidates.Len() = %d, want 0", result.Candidates.Len())
	}
	if a.Class != types.Unique {
		t.Errorf("Class = %v, want Unique", a.Class)
	}
}

func TestScreenerClustersHardlinks(t *testing.T) {
	a := rec("/a", 100, 1, 42)
	b := rec("/b", 100, 1, 42) // same dev+ino as a: hardlink

	cfg := baseConfig()
	cfg.TrustHardlinks = true
	result := New([]*types.FileRecord{a, b}, cfg, disabledCache(t), false).Run()

	if result.Candidates.Len() != 0 {
		t.Fatalf("hardlinked siblings should collapse to a single cluster, not a candidate group; got %d groups", result.Candidates.Len())
	}
	if a.Class != types.Unique || b.Class != types.Unique {
		t.Errorf("hardlinked siblings should both be Unique, got a=%v b=%v", a.Class, b.Class)
	}
}

func TestScreenerUntrustedHardlinksTreatedIndependently(t *testing.T) {
	a := rec("/a", 100, 1, 42)
	b := rec("/b", 100, 1, 42)

	cfg := baseConfig()
	cfg.TrustHardlinks = false
	result := New([]*types.FileRecord{a, b}, cfg, disabledCache(t), false).Run()

	if result.Candidates.Len() != 1 {
		t.Fatalf("Candidates.Len() = %d, want 1 (hardlinks verified independently)", result.Candidates.Len())
	}
	if got := result.Candidates.First().Len(); got != 2 {
		t.Errorf("candidate group has %d clusters, want 2 one-member clusters", got)
	}
}

func TestScreenerResolvesFromCacheWithoutCandidates(t *testing.T) {
	tmp := t.TempDir() + "/cache.db"
	c, err := cache.Open(tmp)
	if err != nil {
		t.Fatalf("cache.Open() failed: %v", err)
	}
	digest := []byte("deadbeefdeadbeefdeadbeefdeadbeef")
	a := rec("/a", 100, 1, 1)
	b := rec("/b", 100, 1, 2)
	if err := c.Store(a, "sha256", digest); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := c.Store(b, "sha256", digest); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	// Stored entries become visible to Lookup in the next run.
	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	c, err = cache.Open(tmp)
	if err != nil {
		t.Fatalf("cache.Open() (second run) failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	result := New([]*types.FileRecord{a, b}, baseConfig(), c, false).Run()

	if result.Candidates.Len() != 0 {
		t.Errorf("Candidates.Len() = %d, want 0 (fully resolved from cache)", result.Candidates.Len())
	}
	if result.Resolved.Len() != 1 {
		t.Fatalf("Resolved.Len() = %d, want 1", result.Resolved.Len())
	}
}

func TestScreenerCacheMissSingletonMarkedUnique(t *testing.T) {
	tmp := t.TempDir() + "/cache.db"
	c, err := cache.Open(tmp)
	if err != nil {
		t.Fatalf("cache.Open() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	a := rec("/a", 100, 1, 1)
	if err := c.Store(a, "sha256", []byte("onlyonefile1234567890123456789012")); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	result := New([]*types.FileRecord{a}, baseConfig(), c, false).Run()

	if result.Resolved.Len() != 0 {
		t.Errorf("Resolved.Len() = %d, want 0", result.Resolved.Len())
	}
	if a.Class != types.Unique {
		t.Errorf("Class = %v, want Unique", a.Class)
	}
}

func TestScreenerMustMatchTaggedDiscardsUntaggedOnlyBucket(t *testing.T) {
	a := rec("/a", 100, 1, 1)
	b := rec("/b", 100, 1, 2)

	cfg := baseConfig()
	cfg.MustMatchTagged = true
	result := New([]*types.FileRecord{a, b}, cfg, disabledCache(t), false).Run()

	if result.Candidates.Len() != 0 {
		t.Errorf("Candidates.Len() = %d, want 0 (no tagged member present)", result.Candidates.Len())
	}
	if a.Class != types.Unique || b.Class != types.Unique {
		t.Errorf("expected both records demoted to Unique, got a=%v b=%v", a.Class, b.Class)
	}
}

func TestScreenerMustMatchTaggedKeepsBucketWithTaggedMember(t *testing.T) {
	a := rec("/a", 100, 1, 1)
	a.Preferred = true
	b := rec("/b", 100, 1, 2)

	cfg := baseConfig()
	cfg.MustMatchTagged = true
	result := New([]*types.FileRecord{a, b}, cfg, disabledCache(t), false).Run()

	if result.Candidates.Len() != 1 {
		t.Fatalf("Candidates.Len() = %d, want 1", result.Candidates.Len())
	}
}

func TestScreenerMatchBasenameSplitsSameSizeByName(t *testing.T) {
	a := rec("/dir1/photo.jpg", 100, 1, 1)
	b := rec("/dir2/other.jpg", 100, 1, 2)

	cfg := baseConfig()
	cfg.MatchBasename = true
	result := New([]*types.FileRecord{a, b}, cfg, disabledCache(t), false).Run()

	if result.Candidates.Len() != 0 {
		t.Errorf("Candidates.Len() = %d, want 0 (different basenames)", result.Candidates.Len())
	}
}

func TestScreenerMixedHardlinksAndDuplicates(t *testing.T) {
	a := rec("/a.txt", 100, 1, 1)
	b := rec("/b.txt", 100, 1, 1)
	c := rec("/c.txt", 100, 1, 2)
	d := rec("/d.txt", 100, 1, 2)
	e := rec("/e.txt", 100, 1, 3)

	result := New([]*types.FileRecord{a, b, c, d, e}, baseConfig(), disabledCache(t), false).Run()

	if result.Candidates.Len() != 1 {
		t.Fatalf("expected 1 candidate group, got %d", result.Candidates.Len())
	}
	if got := result.Candidates.First().Len(); got != 3 {
		t.Errorf("expected 3 hardlink clusters (two pairs + one single), got %d", got)
	}
}
