//go:build linux

package cache

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/ivoronin/lint/internal/types"
)

// xattrName is the namespaced extended attribute mirroring one cache
// entry directly on the file, so a later run can skip I/O for unchanged
// files without any sidecar database.
const xattrName = "user.lint.digest"

// xattrValue packs size(8) + mtime(8) + len(algorithm)(1) + algorithm +
// digest. Size and mtime guard against stale attributes surviving a
// rewrite of the file's content.
func xattrValue(rec *types.FileRecord, algorithm string, digest []byte) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, rec.Size)
	_ = binary.Write(buf, binary.BigEndian, rec.ModTime.UnixNano())
	buf.WriteByte(byte(len(algorithm)))
	buf.WriteString(algorithm)
	buf.Write(digest)
	return buf.Bytes()
}

// XattrLookup returns the digest stored in rec's extended attribute if
// its algorithm, size and mtime still match, or nil.
func XattrLookup(rec *types.FileRecord, algorithm string) []byte {
	buf := make([]byte, 256)
	n, err := unix.Lgetxattr(rec.Path, xattrName, buf)
	if err != nil || n < 17 {
		return nil
	}
	data := buf[:n]

	size := int64(binary.BigEndian.Uint64(data[0:8]))
	mtime := int64(binary.BigEndian.Uint64(data[8:16]))
	if size != rec.Size || mtime != rec.ModTime.UnixNano() {
		return nil
	}

	algLen := int(data[16])
	if len(data) < 17+algLen {
		return nil
	}
	if string(data[17:17+algLen]) != algorithm {
		return nil
	}
	digest := append([]byte(nil), data[17+algLen:]...)
	if len(digest) == 0 {
		return nil
	}
	return digest
}

// XattrStore writes rec's digest into its extended attribute. Failure
// (read-only filesystem, xattrs unsupported) is reported to the caller
// to warn about once and move on.
func XattrStore(rec *types.FileRecord, algorithm string, digest []byte) error {
	return unix.Lsetxattr(rec.Path, xattrName, xattrValue(rec, algorithm, digest), 0)
}
