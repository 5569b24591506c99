//go:build unix

package testfs

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ReapPaths captures the filesystem state for the given volume paths
// below root: regular files grouped by inode, plus symlinks with their
// targets.
func ReapPaths(root string, paths []string) (*ReapResult, error) {
	result := &ReapResult{}

	for _, path := range paths {
		vol, err := reapPath(filepath.Join(root, path), path)
		if err != nil {
			return nil, fmt.Errorf("reap %s: %w", path, err)
		}
		result.Volumes = append(result.Volumes, vol)
	}

	return result, nil
}

// reapPath scans one directory tree. rootPath is the filesystem path to
// walk; logicalPath names the volume in the result.
func reapPath(rootPath, logicalPath string) (ReapVolume, error) {
	vol := ReapVolume{Name: logicalPath}

	inodeToFile := make(map[uint64]*ReapFile)

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil
		}

		relPath, _ := filepath.Rel(rootPath, path)

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			vol.Symlinks = append(vol.Symlinks, ReapSymlink{Path: relPath, Target: target})
			return nil
		}
		if info.IsDir() {
			return nil
		}

		stat, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return fmt.Errorf("cannot get stat for %s", path)
		}

		if existing, ok := inodeToFile[stat.Ino]; ok {
			existing.Path = append(existing.Path, relPath)
			return nil
		}
		inodeToFile[stat.Ino] = &ReapFile{
			Path:  []string{relPath},
			Inode: stat.Ino,
			Nlink: uint64(stat.Nlink), //nolint:unconvert // platform-dependent type
			Size:  info.Size(),
		}
		return nil
	})
	if err != nil {
		return vol, err
	}

	for _, rf := range inodeToFile {
		vol.Files = append(vol.Files, *rf)
	}
	return vol, nil
}
