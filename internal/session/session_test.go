//go:build unix

package session

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ivoronin/lint/internal/applog"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/formatter"
	"github.com/ivoronin/lint/internal/lint"
)

// recordingSink captures every emitted item for assertions.
type recordingSink struct {
	mu     sync.Mutex
	items  []formatter.Item
	phases []lint.Phase
}

func (r *recordingSink) Configure(map[string]string) error { return nil }

func (r *recordingSink) Accept(item formatter.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

func (r *recordingSink) Flush() error { return nil }

func (r *recordingSink) OnStateChange(p lint.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
	return nil
}

func (r *recordingSink) ofKind(kind formatter.ItemKind) []formatter.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []formatter.Item
	for _, item := range r.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestConfig(roots ...string) *config.Config {
	cfg := config.Default(2)
	cfg.OutputSpecs = nil
	for _, r := range roots {
		cfg.Roots = append(cfg.Roots, config.Root{Path: r})
	}
	return &cfg
}

func runSession(t *testing.T, cfg *config.Config) (*recordingSink, *Session) {
	t.Helper()
	s, err := New(cfg, applog.New(io.Discard), false)
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	s.AddSink(sink)
	if err := s.Run(); err != nil {
		t.Fatalf("session failed: %v", err)
	}
	return sink, s
}

func TestThreeIdenticalFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a/x", "hello")
	write(t, root, "b/x", "hello")
	write(t, root, "c/x", "hello")

	sink, _ := runSession(t, newTestConfig(root))

	dupes := sink.ofKind(formatter.KindDuplicateFile)
	var originals, duplicates []formatter.Item
	for _, item := range dupes {
		if item.Role == formatter.RoleOriginal {
			originals = append(originals, item)
		} else {
			duplicates = append(duplicates, item)
		}
	}
	if len(originals) != 1 || len(duplicates) != 2 {
		t.Fatalf("expected 1 original and 2 duplicates, got %d and %d", len(originals), len(duplicates))
	}
	if filepath.Base(filepath.Dir(originals[0].Path)) != "a" {
		t.Errorf("expected the lexicographically first path as original, got %s", originals[0].Path)
	}
	for _, d := range duplicates {
		if d.OriginalPath != originals[0].Path {
			t.Errorf("duplicate %s should name %s as its original", d.Path, originals[0].Path)
		}
	}
}

func TestPhaseTransitionsReachEverySink(t *testing.T) {
	root := t.TempDir()
	write(t, root, "only", "content")

	sink, _ := runSession(t, newTestConfig(root))

	want := []lint.Phase{
		lint.PhaseInit, lint.PhaseTraverse, lint.PhasePreprocess,
		lint.PhaseShred, lint.PhaseMerge, lint.PhasePreShutdown, lint.PhaseSummary,
	}
	if len(sink.phases) != len(want) {
		t.Fatalf("expected %d phase transitions, got %v", len(want), sink.phases)
	}
	for i, p := range want {
		if sink.phases[i] != p {
			t.Errorf("phase %d: expected %v, got %v", i, p, sink.phases[i])
		}
	}
}

func TestDuplicateDirectorySubsumesFileFindings(t *testing.T) {
	root := t.TempDir()
	for _, side := range []string{"left", "right"} {
		write(t, root, side+"/a", "alpha content")
		write(t, root, side+"/b", "beta content.")
		write(t, root, side+"/c", "gamma content")
	}

	cfg := newTestConfig(root)
	cfg.MergeDirectories = true
	sink, _ := runSession(t, cfg)

	dirs := sink.ofKind(formatter.KindDuplicateDir)
	var dirDupes []formatter.Item
	for _, d := range dirs {
		if d.Role == formatter.RoleDuplicate {
			dirDupes = append(dirDupes, d)
		}
	}
	if len(dirDupes) != 1 {
		t.Fatalf("expected exactly one duplicate-directory finding, got %d", len(dirDupes))
	}
	if filepath.Base(dirDupes[0].Path) != "right" {
		t.Errorf("expected right to duplicate left, got %s", dirDupes[0].Path)
	}
	if files := sink.ofKind(formatter.KindDuplicateFile); len(files) != 0 {
		t.Errorf("per-file findings under a promoted directory must be suppressed, got %d", len(files))
	}
}

func TestEmptyLintFindings(t *testing.T) {
	root := t.TempDir()
	write(t, root, "empty", "")
	if err := os.MkdirAll(filepath.Join(root, "hollow/inner"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}

	sink, _ := runSession(t, newTestConfig(root))

	if items := sink.ofKind(formatter.KindEmptyFile); len(items) != 1 {
		t.Errorf("expected 1 empty-file finding, got %d", len(items))
	}
	// hollow and hollow/inner are both empty; post-order detection
	// reports each of them.
	if items := sink.ofKind(formatter.KindEmptyDir); len(items) != 2 {
		t.Errorf("expected 2 empty-dir findings, got %d", len(items))
	}
	if items := sink.ofKind(formatter.KindBrokenSymlink); len(items) != 1 {
		t.Errorf("expected 1 broken-symlink finding, got %d", len(items))
	}
}

func TestLintSelectorDisablesFindings(t *testing.T) {
	root := t.TempDir()
	write(t, root, "empty", "")

	cfg := newTestConfig(root)
	sel, err := config.ParseLintSelector("-empty_file")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Lint = sel

	sink, _ := runSession(t, cfg)
	if items := sink.ofKind(formatter.KindEmptyFile); len(items) != 0 {
		t.Errorf("disabled lint type still reported: %v", items)
	}
}

func TestCacheSecondRunReadsNothing(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a", "cached content here")
	write(t, root, "b", "cached content here")
	cachePath := filepath.Join(t.TempDir(), "digests.db")

	cfg := newTestConfig(root)
	cfg.CachePaths = []string{cachePath}

	first, s1 := runSession(t, cfg)
	if len(first.ofKind(formatter.KindDuplicateFile)) != 2 {
		t.Fatalf("first run should report the pair")
	}
	if s1.Counters().BytesRead.Load() == 0 {
		t.Fatal("first run must read file content")
	}

	cfg2 := newTestConfig(root)
	cfg2.CachePaths = []string{cachePath}
	second, s2 := runSession(t, cfg2)

	if got := s2.Counters().BytesRead.Load(); got != 0 {
		t.Errorf("second run should resolve everything from cache, read %d bytes", got)
	}
	if len(second.ofKind(formatter.KindDuplicateFile)) != 2 {
		t.Errorf("cached run must produce the identical report")
	}
}

func TestPreferredRootWinsOriginal(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	write(t, rootA, "x", "prefer me or not")
	write(t, rootB, "x", "prefer me or not")

	cfg := newTestConfig()
	cfg.Roots = []config.Root{
		{Path: rootA, Preferred: false},
		{Path: rootB, Preferred: true},
	}

	sink, _ := runSession(t, cfg)
	for _, item := range sink.ofKind(formatter.KindDuplicateFile) {
		if item.Role == formatter.RoleOriginal && item.Path != filepath.Join(rootB, "x") {
			t.Errorf("the preferred root's copy should be the original, got %s", item.Path)
		}
	}
}

func TestHardlinkReportingPolicy(t *testing.T) {
	root := t.TempDir()
	a := write(t, root, "a/x", "hardlinked payload")
	if err := os.Link(a, filepath.Join(root, "a/y")); err != nil {
		t.Fatal(err)
	}
	write(t, root, "b/x", "hardlinked payload")

	cfg := newTestConfig(root)
	cfg.ReportHardlinked = false
	sink, _ := runSession(t, cfg)
	if got := len(sink.ofKind(formatter.KindDuplicateFile)); got != 2 {
		t.Errorf("with hardlink reporting off, expected original+duplicate only, got %d items", got)
	}

	cfg2 := newTestConfig(root)
	cfg2.ReportHardlinked = true
	sink2, _ := runSession(t, cfg2)
	if got := len(sink2.ofKind(formatter.KindDuplicateFile)); got != 3 {
		t.Errorf("with hardlink reporting on, expected all three paths, got %d items", got)
	}
}

func TestSummaryProgressItemAlwaysEmitted(t *testing.T) {
	root := t.TempDir()
	write(t, root, "only", "nothing duplicated")

	sink, _ := runSession(t, newTestConfig(root))
	progress := sink.ofKind(formatter.KindProgress)
	if len(progress) == 0 {
		t.Fatal("a summary progress item must be emitted even when no lint was found")
	}
	last := progress[len(progress)-1]
	if last.Phase != lint.PhaseSummary {
		t.Errorf("final progress item should carry the SUMMARY phase, got %v", last.Phase)
	}
	if last.FilesScanned != 1 {
		t.Errorf("expected 1 scanned file, got %d", last.FilesScanned)
	}
}

func TestUnknownFormatterIsConfigError(t *testing.T) {
	cfg := newTestConfig(t.TempDir())
	cfg.OutputSpecs = []string{"no-such-formatter"}
	if _, err := New(cfg, applog.New(io.Discard), false); err == nil {
		t.Fatal("an unknown formatter name must fail session construction")
	}
}
