//go:build !linux

package cache

import (
	"errors"

	"github.com/ivoronin/lint/internal/types"
)

// Extended-attribute mirroring is only wired up on Linux; elsewhere the
// sidecar cache file is the sole persistence path.

func XattrLookup(*types.FileRecord, string) []byte { return nil }

func XattrStore(*types.FileRecord, string, []byte) error {
	return errors.New("extended attributes not supported on this platform")
}
