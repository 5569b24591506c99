//go:build linux

package scheduler

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fsIocFiemap is FS_IOC_FIEMAP, _IOWR('f', 11, struct fiemap) per
// linux/fiemap.h. golang.org/x/sys/unix does not expose the FIEMAP
// struct family directly, so the ioctl request code and the wire
// layout below are reproduced by hand from the kernel header.
const fsIocFiemap = 0xC020660B

// fiemapExtentCount requests a single extent: enough to answer "what
// physical block backs this logical offset", which is all the
// scheduler needs for ordering.
const fiemapExtentCount = 1

// kernel struct fiemap, extent_count trailing struct fiemap_extent
// entries omitted from this header-only copy and appended manually.
type fiemapHeader struct {
	Start        uint64
	Length       uint64
	Flags        uint32
	MappedExtent uint32
	ExtentCount  uint32
	Reserved     uint32
}

// kernel struct fiemap_extent.
type fiemapExtent struct {
	Logical  uint64
	Physical uint64
	Length   uint64
	Reserved64 [2]uint64
	Flags    uint32
	Reserved [3]uint32
}

// physicalOffset asks the filesystem backing path for the physical
// block address of the extent covering logicalOffset via FIEMAP. It
// returns ok=false whenever the ioctl is unsupported or fails -- the
// scheduler then falls back to (inode, path) ordering for that request.
func physicalOffset(path string, logicalOffset int64) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()

	const headerSize = int(unsafe.Sizeof(fiemapHeader{}))
	const extentSize = int(unsafe.Sizeof(fiemapExtent{}))
	buf := make([]byte, headerSize+extentSize*fiemapExtentCount)

	hdr := (*fiemapHeader)(unsafe.Pointer(&buf[0]))
	hdr.Start = uint64(logicalOffset)
	hdr.Length = ^uint64(0)
	hdr.ExtentCount = fiemapExtentCount

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), fsIocFiemap, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return 0, false
	}

	hdr = (*fiemapHeader)(unsafe.Pointer(&buf[0]))
	if hdr.MappedExtent == 0 {
		return 0, false
	}

	ext := (*fiemapExtent)(unsafe.Pointer(&buf[headerSize]))
	delta := uint64(logicalOffset) - ext.Logical
	return int64(ext.Physical + delta), true
}
