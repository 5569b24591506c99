// Package digest implements the incremental content hashing used by the
// shredder to distinguish candidate duplicate files.
//
// Supported algorithms form the closed set required by the design: a fast
// non-cryptographic 64-bit hash (fnv1a64), a seeded "bastard" hash
// combining two independently-seeded fast hashes, strong cryptographic
// hashes (sha256, sha512), and paranoid mode, which is not a hash at all
// but a peer byte comparator (see Comparator).
package digest

import (
	"fmt"
	"sort"
	"strings"
)

// Algorithm maintains a running hash over a stream of byte chunks.
type Algorithm interface {
	// Update folds more bytes into the running hash state.
	Update(p []byte)
	// Snapshot returns the digest of everything folded in so far, without
	// disturbing the ability to keep calling Update.
	Snapshot() []byte
	// Name returns the algorithm's registered name.
	Name() string
	// New returns a fresh instance of the same algorithm with empty state.
	New() Algorithm
}

// registry maps algorithm names to constructors. A constructor may need
// per-session entropy (the bastard hash), so registration happens through
// NewFactory, seeded once by the session.
type constructor func() Algorithm

var registry = map[string]constructor{
	"fnv1a64": func() Algorithm { return newFNV1a64() },
	"sha256":  func() Algorithm { return newSHA256() },
	"sha512":  func() Algorithm { return newSHA512() },
}

// Paranoid names the byte-comparison mode. It has no Algorithm
// constructor: groups under paranoid mode are split on raw bytes by
// Comparator, with sha256 carried alongside to label the results.
const Paranoid = "paranoid"

// DefaultName is the algorithm used when the user does not request one.
// Most duplicate-file workloads are I/O bound, not hash bound, so the
// default favors a fast hash. The verifier hashes every round with the
// one configured algorithm; it does not switch to a stronger hash for
// groups that survive size and prefix matching.
const DefaultName = "bastard"

// Names returns the list of built-in algorithm names, including
// "bastard" and "paranoid" which are constructed specially (see New
// and NewParanoidComparator).
func Names() []string {
	names := make([]string, 0, len(registry)+2)
	names = append(names, "bastard")
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	names = append(names, "paranoid")
	return names
}

// Factory constructs fresh Algorithm instances by name. It is created once
// per session so the bastard hash's seeds are session-unique entropy,
// never global state.
type Factory struct {
	seed1, seed2 uint64
}

// NewFactory creates a Factory seeded with the given session-unique seeds.
// Callers should draw seed1/seed2 from crypto/rand once per session (see
// internal/session), not from a fixed constant, so adversarial inputs
// cannot force cross-run collisions.
func NewFactory(seed1, seed2 uint64) *Factory {
	return &Factory{seed1: seed1, seed2: seed2}
}

// New constructs a fresh Algorithm instance for the given name.
func (f *Factory) New(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "bastard" {
		return newBastard(f.seed1, f.seed2), nil
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("digest: unknown algorithm %q", name)
	}
	return ctor(), nil
}
