package digest

import (
	"hash"
	"hash/fnv"
)

// fnv1a64Hash is the fast non-cryptographic 64-bit option for the
// shredder's rounds, where I/O dominates the cost and a cheap hash is
// enough to split most groups.
type fnv1a64Hash struct {
	h hash.Hash64
}

func newFNV1a64() *fnv1a64Hash {
	return &fnv1a64Hash{h: fnv.New64a()}
}

func (f *fnv1a64Hash) Update(p []byte) { _, _ = f.h.Write(p) }

func (f *fnv1a64Hash) Snapshot() []byte { return f.h.Sum(nil) }

func (f *fnv1a64Hash) Name() string { return "fnv1a64" }

func (f *fnv1a64Hash) New() Algorithm { return newFNV1a64() }
