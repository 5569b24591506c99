package scanner

import (
	"os"
	"syscall"

	"github.com/ivoronin/lint/internal/types"
)

// newFileRecord builds a FileRecord from a stat'd os.FileInfo.
// preferred carries the root's "//" tag down onto every file
// discovered under it.
func newFileRecord(path string, info os.FileInfo, preferred bool) *types.FileRecord {
	stat := info.Sys().(*syscall.Stat_t)
	return &types.FileRecord{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Dev:       uint64(stat.Dev), //nolint:unconvert // platform-dependent type
		Ino:       stat.Ino,
		Nlink:     uint32(stat.Nlink),
		Preferred: preferred,
	}
}
