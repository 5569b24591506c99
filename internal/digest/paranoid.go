package digest

import "bytes"

// Comparator is the peer comparator used by paranoid mode. Unlike
// Algorithm, it does not summarize a stream into a fixed digest -- it
// directly compares equal-length chunks read from every member of one
// CandidateGroup against a designated reference member, and reports the
// index of the first member whose bytes diverge.
//
// Memory is bounded by a configurable budget: once members*chunkSize
// would exceed it, the caller should fall back to a strong Algorithm for
// that group instead of growing the comparator's buffers further.
type Comparator struct {
	budget int64
	inUse  int64
}

// NewParanoidComparator creates a Comparator bounded by budget bytes of
// outstanding chunk buffers across all members being compared at once.
func NewParanoidComparator(budget int64) *Comparator {
	return &Comparator{budget: budget}
}

// Fits reports whether comparing memberCount members of chunkSize bytes
// each stays within the comparator's memory budget. Callers should fall
// back to a strong Algorithm (e.g. sha256) for the group when this
// returns false.
func (c *Comparator) Fits(memberCount int, chunkSize int64) bool {
	if c.budget <= 0 {
		return true // unbounded
	}
	return int64(memberCount)*chunkSize <= c.budget
}

// Compare compares reference against each of peers chunk-by-chunk and
// returns the index (into peers) of the first chunk that differs from
// reference, or -1 if all peers match reference exactly.
func (c *Comparator) Compare(reference []byte, peers [][]byte) int {
	for i, peer := range peers {
		if !bytes.Equal(reference, peer) {
			return i
		}
	}
	return -1
}
