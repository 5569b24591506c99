//go:build unix

package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/formatter"
)

func createFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func baseConfig(root string) *config.Config {
	cfg := config.Default(2)
	cfg.Roots = []config.Root{{Path: root}}
	return &cfg
}

func TestTraverserFindsRegularFiles(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "a"), 10)
	createFile(t, filepath.Join(root, "b"), 20)

	tr := New(baseConfig(root), 2, false, nil, nil)
	files := tr.Run()
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
}

func TestTraverserSkipsHiddenByDefault(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, ".hidden"), 10)
	createFile(t, filepath.Join(root, "visible"), 10)

	tr := New(baseConfig(root), 2, false, nil, nil)
	files := tr.Run()
	if len(files) != 1 || filepath.Base(files[0].Path) != "visible" {
		t.Fatalf("expected only the visible file, got %v", files)
	}
}

func TestTraverserIncludesHiddenWhenConfigured(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, ".hidden"), 10)

	cfg := baseConfig(root)
	cfg.Hidden = config.HiddenInclude
	tr := New(cfg, 2, false, nil, nil)
	files := tr.Run()
	if len(files) != 1 {
		t.Fatalf("expected hidden file to be included, got %d files", len(files))
	}
}

func TestTraverserSizeFilter(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "small"), 10)
	createFile(t, filepath.Join(root, "big"), 1000)

	cfg := baseConfig(root)
	cfg.Size = config.SizeRange{Min: 100, Max: ^uint64(0)}
	tr := New(cfg, 2, false, nil, nil)
	files := tr.Run()
	if len(files) != 1 || filepath.Base(files[0].Path) != "big" {
		t.Fatalf("expected only the big file to survive the size filter, got %v", files)
	}
}

func TestTraverserReportsEmptyFile(t *testing.T) {
	root := t.TempDir()
	createFile(t, filepath.Join(root, "empty"), 0)

	findings := make(chan formatter.Item, 10)
	tr := New(baseConfig(root), 2, false, nil, findings)
	tr.Run()
	close(findings)

	found := false
	for item := range findings {
		if item.Kind == formatter.KindEmptyFile {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an EmptyFile finding")
	}
}

func TestTraverserReportsEmptyDirectoryPostOrder(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	findings := make(chan formatter.Item, 10)
	tr := New(baseConfig(root), 2, false, nil, findings)
	tr.Run()
	close(findings)

	var emptyDirs []string
	for item := range findings {
		if item.Kind == formatter.KindEmptyDir {
			emptyDirs = append(emptyDirs, item.Path)
		}
	}
	// Both "a" and "a/b" contain nothing but empty directories, so both
	// must be reported -- the post-order guarantee.
	if len(emptyDirs) != 2 {
		t.Fatalf("expected 2 empty directory findings (a and a/b), got %v", emptyDirs)
	}
}

func TestTraverserDoesNotReportNonEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	createFile(t, filepath.Join(sub, "f"), 10)

	findings := make(chan formatter.Item, 10)
	tr := New(baseConfig(root), 2, false, nil, findings)
	tr.Run()
	close(findings)

	for item := range findings {
		if item.Kind == formatter.KindEmptyDir {
			t.Errorf("did not expect an EmptyDir finding for a directory containing a file")
		}
	}
}

func TestTraverserReportsBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "broken")
	if err := os.Symlink(filepath.Join(root, "missing-target"), link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	findings := make(chan formatter.Item, 10)
	tr := New(baseConfig(root), 2, false, nil, findings)
	tr.Run()
	close(findings)

	found := false
	for item := range findings {
		if item.Kind == formatter.KindBrokenSymlink {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a BrokenSymlink finding")
	}
}

func TestTraverserMaxDepth(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	createFile(t, filepath.Join(root, "a", "shallow"), 10)
	createFile(t, filepath.Join(nested, "deep"), 10)

	cfg := baseConfig(root)
	cfg.MaxDepth = 1
	tr := New(cfg, 2, false, nil, nil)
	files := tr.Run()
	if len(files) != 1 || filepath.Base(files[0].Path) != "shallow" {
		t.Fatalf("expected only the shallow file within depth 1, got %v", files)
	}
}

func TestIsHidden(t *testing.T) {
	cases := map[string]bool{".git": true, "..": false, ".": false, "file": false, ".file": true}
	for name, want := range cases {
		if got := isHidden(name); got != want {
			t.Errorf("isHidden(%q) = %v, want %v", name, got, want)
		}
	}
}
