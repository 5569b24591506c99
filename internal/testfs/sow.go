package testfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// SowFileTree creates a filesystem structure from a FileTree spec under
// root. Each volume's MountPoint becomes a subdirectory of root.
func SowFileTree(root string, spec FileTree) error {
	for _, vol := range spec.Volumes {
		if err := sowVolume(root, vol); err != nil {
			return fmt.Errorf("sow volume %s: %w", vol.MountPoint, err)
		}
	}
	return nil
}

// sowVolume creates all files, symlinks and explicit directories in a
// volume.
func sowVolume(root string, vol Volume) error {
	volPath := filepath.Join(root, vol.MountPoint)

	if err := os.MkdirAll(volPath, 0o755); err != nil {
		return fmt.Errorf("create volume dir: %w", err)
	}

	for _, d := range vol.Dirs {
		if err := os.MkdirAll(filepath.Join(volPath, d), 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", d, err)
		}
	}

	for _, f := range vol.Files {
		if err := sowFile(volPath, f); err != nil {
			return err
		}
	}

	for _, sym := range vol.Symlinks {
		linkPath := filepath.Join(volPath, sym.Path)
		if err := createSymlink(sym.Target, linkPath); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", linkPath, sym.Target, err)
		}
	}
	return nil
}

// sowFile creates a single file entry with its optional hardlinks.
func sowFile(volPath string, f File) error {
	if len(f.Path) == 0 {
		return nil
	}

	firstPath := filepath.Join(volPath, f.Path[0])
	if err := writeChunkedFile(firstPath, f.Chunks); err != nil {
		return fmt.Errorf("create %s: %w", firstPath, err)
	}

	for _, p := range f.Path[1:] {
		linkPath := filepath.Join(volPath, p)
		if err := createHardlink(firstPath, linkPath); err != nil {
			return fmt.Errorf("hardlink %s -> %s: %w", linkPath, firstPath, err)
		}
	}
	return nil
}

// writeChunkedFile streams content directly to disk, handling both tiny
// and multi-gigabyte chunks without holding them in memory.
func writeChunkedFile(path string, chunks []Chunk) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, c := range chunks {
		if err := writeChunk(f, c); err != nil {
			return err
		}
	}
	return nil
}

func writeChunk(f *os.File, c Chunk) error {
	const maxBufSize = 1 << 20

	size, err := humanize.ParseBytes(c.Size)
	if err != nil {
		return fmt.Errorf("parse chunk size %q: %w", c.Size, err)
	}

	bufSize := int(size)
	if bufSize > maxBufSize {
		bufSize = maxBufSize
	}
	buf := bytes.Repeat([]byte{byte(c.Pattern)}, bufSize)

	remaining := int64(size)
	for remaining > 0 {
		toWrite := int64(len(buf))
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			return err
		}
		remaining -= toWrite
	}
	return nil
}

func createHardlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Link(target, link)
}

func createSymlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}
