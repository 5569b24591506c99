// Package testfs provides filesystem fixtures for pipeline tests.
//
// Tests describe a tree declaratively and the harness creates it in
// t.TempDir(). The same FileTree value doubles as the expected state
// afterwards: the pipeline only reports lint, it never modifies the
// filesystem, so asserting the sown spec still holds after a run
// verifies exactly that.
//
//	given := testfs.FileTree{
//	    Volumes: []testfs.Volume{
//	        {
//	            MountPoint: "/data",
//	            Files: []testfs.File{
//	                {Path: []string{"a.txt", "backup/a.txt"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1MiB"}}},
//	            },
//	        },
//	    },
//	}
//	h := testfs.New(t, given)
//	// ... run the pipeline over h.Root() ...
//	h.AssertUnchanged()
//
// Subdirectories are created automatically from file paths (mkdir -p
// semantics); file paths are relative to the volume mount point.
package testfs

import "github.com/dustin/go-humanize"

// FileTree describes a filesystem state, used both for setup and for
// verification.
type FileTree struct {
	Volumes []Volume
}

// Volume is one directory tree under the harness root. Separate
// volumes model separate input roots.
type Volume struct {
	// MountPoint is the volume's path below the harness root, e.g.
	// "/data".
	MountPoint string

	// Files in this volume. A File with multiple paths is a hardlink
	// cluster: the first path is created, the rest are linked to it.
	Files []File

	// Symlinks in this volume.
	Symlinks []Symlink

	// Dirs are directories created explicitly, for trees the file list
	// alone would not produce (empty directories, nested empty chains).
	Dirs []string
}

// File defines a regular file, possibly with hardlinks.
//
// In setup context, Path[0] is created with the content given by Chunks
// and Path[1:] are hardlinked to it. In verification context, all paths
// must exist and share one inode, and distinct File entries must not
// share inodes.
type File struct {
	// Path contains one or more paths relative to the volume.
	Path []string

	// Chunks specifies content as a sequence of pattern-filled regions.
	// Same chunks, same content. Sizes use IEC units ("4KiB", "1MiB")
	// for precise alignment with the shredder's round boundaries.
	Chunks []Chunk
}

// Chunk is a region of file content filled with one pattern byte.
type Chunk struct {
	Pattern rune
	Size    string
}

// TotalSize is the sum of all chunk sizes in bytes.
func (f *File) TotalSize() int64 {
	var total int64
	for _, c := range f.Chunks {
		size, _ := humanize.ParseBytes(c.Size)
		total += int64(size)
	}
	return total
}

// Symlink defines a symbolic link from Path (relative to the volume)
// to Target. A Target outside the tree, or pointing at nothing, sows a
// broken symlink.
type Symlink struct {
	Path   string
	Target string
}

// ReapResult is the captured state of one or more volumes, used to
// compare the tree against its expected shape.
type ReapResult struct {
	Volumes []ReapVolume
}

// ReapVolume is the scanned state of a single volume.
type ReapVolume struct {
	Name     string
	Files    []ReapFile
	Symlinks []ReapSymlink
}

// ReapFile groups every path sharing one inode.
type ReapFile struct {
	Path  []string
	Inode uint64
	Nlink uint64
	Size  int64
}

// ReapSymlink is one captured symlink.
type ReapSymlink struct {
	Path   string
	Target string
}
