//go:build unix

package testfs

import (
	"testing"
)

// Harness sows a FileTree spec into t.TempDir() and verifies the tree's
// state afterwards. All volumes live on the same filesystem, so
// cross-device behavior cannot be exercised here; tests that need
// distinct device ids construct FileRecords directly instead.
type Harness struct {
	t     *testing.T
	root  string
	given FileTree
}

// New creates a Harness: a temporary directory holding one subdirectory
// per Volume, populated with the spec's files, hardlinks, symlinks and
// explicit directories. Cleanup rides on t.TempDir().
func New(t *testing.T, given FileTree) *Harness {
	t.Helper()

	root := t.TempDir()
	h := &Harness{t: t, root: root, given: given}

	if err := SowFileTree(root, given); err != nil {
		t.Fatalf("failed to setup files: %v", err)
	}

	return h
}

// Root returns the temporary directory root path.
func (h *Harness) Root() string {
	return h.root
}

// Assert verifies the filesystem state matches the expected FileTree:
// every path exists, paths within one File entry share an inode,
// distinct entries do not, and symlinks point where declared.
func (h *Harness) Assert(expected FileTree) {
	h.t.Helper()

	for _, vol := range expected.Volumes {
		h.assertState(vol)
	}
}

// AssertUnchanged verifies the tree still matches the spec it was sown
// from. The pipeline must never modify the filesystem it scans; this is
// the check that it didn't.
func (h *Harness) AssertUnchanged() {
	h.t.Helper()
	h.Assert(h.given)
}

func (h *Harness) assertState(vol Volume) {
	h.t.Helper()

	actual, err := ReapPaths(h.root, []string{vol.MountPoint})
	if err != nil {
		h.t.Fatalf("reap %s: %v", vol.MountPoint, err)
	}
	if len(actual.Volumes) == 0 {
		h.t.Fatalf("reap returned no volumes for %s", vol.MountPoint)
	}

	AssertVolume(h.t, vol, actual.Volumes[0])
}
