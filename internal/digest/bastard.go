package digest

import "github.com/cespare/xxhash/v2"

// bastardHash combines two independently-seeded xxhash streams into one
// 16-byte digest. The two seeds are drawn once per session from
// crypto/rand (see internal/session), so an adversary who knows the
// algorithm cannot force a collision across separate runs of the tool --
// they would need to guess this run's seeds too.
//
// xxhash does not take a seed directly in its streaming API, so each lane
// is seeded by folding the seed bytes in before any file content.
type bastardHash struct {
	seed1, seed2 uint64
	h1, h2       *xxhash.Digest
}

func newBastard(seed1, seed2 uint64) *bastardHash {
	b := &bastardHash{seed1: seed1, seed2: seed2}
	b.h1 = xxhash.New()
	b.h2 = xxhash.New()
	b.writeSeed(b.h1, seed1)
	b.writeSeed(b.h2, seed2)
	return b
}

func (b *bastardHash) writeSeed(h *xxhash.Digest, seed uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(seed >> (8 * i))
	}
	_, _ = h.Write(buf[:])
}

func (b *bastardHash) Update(p []byte) {
	_, _ = b.h1.Write(p)
	_, _ = b.h2.Write(p)
}

// Snapshot returns the two lanes concatenated, giving a 16-byte digest --
// wide enough that accidental collisions between unrelated files are
// negligible while still being cheap to compute.
func (b *bastardHash) Snapshot() []byte {
	sum1 := b.h1.Sum(nil)
	sum2 := b.h2.Sum(nil)
	return append(sum1, sum2...)
}

func (b *bastardHash) Name() string { return "bastard" }

func (b *bastardHash) New() Algorithm { return newBastard(b.seed1, b.seed2) }
