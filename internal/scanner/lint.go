package scanner

import (
	"debug/elf"
	"os/user"
	"strconv"
	"syscall"

	"github.com/ivoronin/lint/internal/formatter"
)

// badUID reports whether uid does not resolve to any account -- the
// usual sign that a file belongs to a since-deleted user.
func badUID(uid uint32) bool {
	_, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	return err != nil
}

// badGID reports whether gid does not resolve to any group.
func badGID(gid uint32) bool {
	_, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	return err != nil
}

// nonStripped peeks at an ELF file's section headers and reports
// whether it still carries a symbol table or debug info. Only section
// presence is checked; no symbols are decoded.
func nonStripped(path string) bool {
	f, err := elf.Open(path)
	if err != nil {
		return false // not an ELF file, or unreadable -- not our concern here
	}
	defer func() { _ = f.Close() }()

	for _, sec := range f.Sections {
		if sec.Name == ".symtab" || sec.Name == ".debug_info" {
			return true
		}
	}
	return false
}

// statOwner extracts uid/gid from a *syscall.Stat_t.
func statOwner(stat *syscall.Stat_t) (uid, gid uint32) {
	return stat.Uid, stat.Gid
}

// lintItem is a convenience constructor for the per-file findings the
// traverser emits directly, as opposed to the duplicate-file and
// duplicate-dir findings produced downstream.
func lintItem(kind formatter.ItemKind, path string, size int64, uid, gid uint32) formatter.Item {
	return formatter.Item{Kind: kind, Path: path, Size: size, UID: uid, GID: gid}
}
