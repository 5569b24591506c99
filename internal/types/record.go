// Package types provides shared types used across the lint-finding pipeline.
package types

import (
	"cmp"
	"slices"
	"time"
)

// Classification is the terminal state of a FileRecord once the pipeline
// has finished with it. Once a record reaches one of these states it is
// frozen: nothing downstream mutates it further.
type Classification int

const (
	// Pending means the record has not yet been classified.
	Pending Classification = iota
	// Original is the kept member of a resolved duplicate group.
	Original
	// Duplicate is a non-kept member of a resolved duplicate group.
	Duplicate
	// Unique means no other record shares this record's size and content.
	Unique
	// Rejected means a read error removed this record from its group.
	Rejected
)

func (c Classification) String() string {
	switch c {
	case Original:
		return "ORIGINAL"
	case Duplicate:
		return "DUPLICATE"
	case Unique:
		return "UNIQUE"
	case Rejected:
		return "REJECTED"
	default:
		return "PENDING"
	}
}

// FileRecord holds metadata and pipeline state for one discovered regular
// file that survived preprocessing.
//
// Invariants: Size is within the configured [min,max] bounds; ReadOffset
// never exceeds Size; once Class is anything other than Pending it is
// frozen and no later phase mutates it.
type FileRecord struct {
	Path      string
	Size      int64
	ModTime   time.Time
	Dev       uint64
	Ino       uint64
	Nlink     uint32
	Preferred bool // set when discovered under a root tagged with "//"

	// ReadOffset is the number of bytes from the start of the file that
	// have been folded into Digest so far.
	ReadOffset int64
	// Digest is the running digest snapshot at ReadOffset, or nil before
	// the first round.
	Digest []byte
	// Algorithm names the digest algorithm used to produce Digest.
	Algorithm string

	Class Classification
	// ClassErr carries the read error for Rejected records.
	ClassErr error
	// GroupID numbers the duplicate group the shredder resolved this
	// record into (taken from a monotone counter); zero otherwise.
	GroupID int
}

// Sorted is an ordered collection that maintains sort order by a key function.
// T is the element type, K is the comparable key type.
// Once constructed, items are guaranteed to be sorted by key.
type Sorted[T any, K cmp.Ordered] struct {
	items   []T
	keyFunc func(T) K
}

// NewSorted creates a sorted collection from items using keyFunc for ordering.
// Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted, keyFunc: keyFunc}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// First returns the first item (smallest key), or zero value if empty.
func (s Sorted[T, K]) First() T {
	if len(s.items) == 0 {
		var zero T
		return zero
	}
	return s.items[0]
}

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }

// HardlinkCluster contains records sharing the same device+inode.
// Records are always sorted by Path for deterministic iteration.
type HardlinkCluster = Sorted[*FileRecord, string]

// NewHardlinkCluster creates a HardlinkCluster sorted by file path.
func NewHardlinkCluster(files []*FileRecord) HardlinkCluster {
	return NewSorted(files, func(f *FileRecord) string { return f.Path })
}

// CandidateGroup contains hardlink clusters believed to share identical
// content up to the lowest ReadOffset among members (a set not yet
// distinguished by content read so far).
type CandidateGroup = Sorted[HardlinkCluster, string]

// NewCandidateGroup creates a CandidateGroup sorted by first file's path.
func NewCandidateGroup(clusters []HardlinkCluster) CandidateGroup {
	return NewSorted(clusters, func(c HardlinkCluster) string { return c.First().Path })
}

// CandidateGroups is a sorted collection of candidate groups.
type CandidateGroups = Sorted[CandidateGroup, string]

// NewCandidateGroups creates sorted CandidateGroups.
func NewCandidateGroups(groups []CandidateGroup) CandidateGroups {
	return NewSorted(groups, func(cg CandidateGroup) string {
		return cg.First().First().Path
	})
}

// DuplicateGroup contains hardlink clusters confirmed to share identical
// content (a resolved CandidateGroup).
type DuplicateGroup = Sorted[HardlinkCluster, string]

// NewDuplicateGroup creates a DuplicateGroup sorted by first file's path.
func NewDuplicateGroup(clusters []HardlinkCluster) DuplicateGroup {
	return NewSorted(clusters, func(c HardlinkCluster) string { return c.First().Path })
}

// DuplicateGroups is a sorted collection of duplicate groups.
type DuplicateGroups = Sorted[DuplicateGroup, string]

// NewDuplicateGroups creates sorted DuplicateGroups.
func NewDuplicateGroups(groups []DuplicateGroup) DuplicateGroups {
	return NewSorted(groups, func(dg DuplicateGroup) string {
		return dg.First().First().Path
	})
}

// Semaphore implements a counting semaphore using a buffered channel.
// It limits concurrent access to a resource by blocking when the limit is reached.
type Semaphore chan struct{}

// NewSemaphore creates a semaphore that allows up to n concurrent acquisitions.
func NewSemaphore(n int) Semaphore { return make(chan struct{}, n) }

// Acquire blocks until a slot is available, then claims it.
func (s Semaphore) Acquire() { s <- struct{}{} }

// Release frees a slot, unblocking one waiting Acquire call.
func (s Semaphore) Release() { <-s }
