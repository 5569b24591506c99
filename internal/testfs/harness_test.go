//go:build unix

package testfs

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestSowCreatesFilesCorrectly(t *testing.T) {
	root := t.TempDir()

	spec := FileTree{
		Volumes: []Volume{
			{
				MountPoint: "/vol1",
				Files: []File{
					{Path: []string{"a.txt"}, Chunks: []Chunk{{Pattern: 'A', Size: "100"}}},
					{Path: []string{"b.txt"}, Chunks: []Chunk{{Pattern: 'B', Size: "50"}}},
				},
			},
		},
	}

	if err := SowFileTree(root, spec); err != nil {
		t.Fatalf("SowFileTree failed: %v", err)
	}

	contentA, err := os.ReadFile(filepath.Join(root, "vol1", "a.txt"))
	if err != nil {
		t.Fatalf("failed to read a.txt: %v", err)
	}
	if len(contentA) != 100 {
		t.Errorf("a.txt size: got %d, want 100", len(contentA))
	}
	for i, b := range contentA {
		if b != 'A' {
			t.Errorf("a.txt content[%d]: got %q, want 'A'", i, b)
			break
		}
	}

	contentB, err := os.ReadFile(filepath.Join(root, "vol1", "b.txt"))
	if err != nil {
		t.Fatalf("failed to read b.txt: %v", err)
	}
	if len(contentB) != 50 {
		t.Errorf("b.txt size: got %d, want 50", len(contentB))
	}
}

func TestSowCreatesHardlinksCorrectly(t *testing.T) {
	root := t.TempDir()

	spec := FileTree{
		Volumes: []Volume{
			{
				MountPoint: "/vol1",
				Files: []File{
					{Path: []string{"original.txt", "link1.txt", "subdir/link2.txt"}, Chunks: []Chunk{{Pattern: 'S', Size: "100"}}},
				},
			},
		},
	}

	if err := SowFileTree(root, spec); err != nil {
		t.Fatalf("SowFileTree failed: %v", err)
	}

	paths := []string{
		filepath.Join(root, "vol1", "original.txt"),
		filepath.Join(root, "vol1", "link1.txt"),
		filepath.Join(root, "vol1", "subdir", "link2.txt"),
	}

	var inodes []uint64
	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			t.Fatalf("failed to stat %s: %v", p, err)
		}
		stat := info.Sys().(*syscall.Stat_t)
		inodes = append(inodes, stat.Ino)
	}
	for i := 1; i < len(inodes); i++ {
		if inodes[i] != inodes[0] {
			t.Errorf("hardlink mismatch: %s (inode %d) != %s (inode %d)",
				paths[i], inodes[i], paths[0], inodes[0])
		}
	}
}

func TestSowCreatesDirsAndSymlinks(t *testing.T) {
	root := t.TempDir()

	spec := FileTree{
		Volumes: []Volume{
			{
				MountPoint: "/vol1",
				Dirs:       []string{"hollow/inner"},
				Symlinks: []Symlink{
					{Path: "dangling", Target: "/nonexistent/target"},
				},
			},
		},
	}

	if err := SowFileTree(root, spec); err != nil {
		t.Fatalf("SowFileTree failed: %v", err)
	}

	info, err := os.Lstat(filepath.Join(root, "vol1", "hollow", "inner"))
	if err != nil || !info.IsDir() {
		t.Errorf("explicit empty directory chain not created: %v", err)
	}

	target, err := os.Readlink(filepath.Join(root, "vol1", "dangling"))
	if err != nil {
		t.Fatalf("symlink not created: %v", err)
	}
	if target != "/nonexistent/target" {
		t.Errorf("symlink target: got %q", target)
	}
}

func TestReapGroupsHardlinksByInode(t *testing.T) {
	root := t.TempDir()

	spec := FileTree{
		Volumes: []Volume{
			{
				MountPoint: "/vol1",
				Files: []File{
					{Path: []string{"a", "b"}, Chunks: []Chunk{{Pattern: 'X', Size: "10"}}},
					{Path: []string{"c"}, Chunks: []Chunk{{Pattern: 'X', Size: "10"}}},
				},
			},
		},
	}
	if err := SowFileTree(root, spec); err != nil {
		t.Fatal(err)
	}

	result, err := ReapPaths(root, []string{"/vol1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Volumes) != 1 {
		t.Fatalf("expected 1 volume, got %d", len(result.Volumes))
	}
	if got := len(result.Volumes[0].Files); got != 2 {
		t.Errorf("expected 2 inode groups, got %d", got)
	}
}

func TestAssertUnchangedAcceptsUntouchedTree(t *testing.T) {
	given := FileTree{
		Volumes: []Volume{
			{
				MountPoint: "/data",
				Files: []File{
					{Path: []string{"x", "y"}, Chunks: []Chunk{{Pattern: 'Q', Size: "64"}}},
					{Path: []string{"z"}, Chunks: []Chunk{{Pattern: 'Q', Size: "64"}}},
				},
			},
		},
	}

	h := New(t, given)
	h.AssertUnchanged()
}
