// Package treemerge aggregates confirmed per-file duplicates into
// duplicate-directory findings.
//
// Every directory holding at least one file in duplicate detection gets
// a DirNode. As the shredder resolves files, each resolution is folded
// into the digests of all the file's ancestor directories; a directory
// whose every participating descendant resolved as a duplicate (and
// none as unique or rejected) is finished. Finished directories sharing
// a fold digest are duplicate directories, and their per-file findings
// are subsumed by the directory finding.
//
// The fold is an XOR/sum combine over per-file hashes of (relative
// path, content digest), so it is independent of the order in which
// resolutions arrive and of directory listing order.
package treemerge

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/types"
)

// DirNode tracks one directory's aggregation state.
type DirNode struct {
	path string

	// total counts participating files anywhere below this directory;
	// confirmed counts those resolved as duplicates.
	total     int
	confirmed int
	// tainted is set when any descendant resolved UNIQUE or REJECTED --
	// such a directory can never be promoted.
	tainted bool

	// foldXor/foldSum combine per-file hashes order-independently.
	// Either alone is collision-prone under XOR's self-cancellation;
	// together with the file count they make accidental equality
	// implausible.
	foldXor uint64
	foldSum uint64

	bytes     int64
	preferred bool // all participating files lie under a preferred root
}

func (n *DirNode) finished() bool {
	return !n.tainted && n.total > 0 && n.confirmed == n.total
}

// foldKey is the grouping identity of a finished directory.
type foldKey struct {
	xor, sum uint64
	files    int
}

// Finding is one promoted set of duplicate directories.
type Finding struct {
	// Paths sorted with the original first.
	Original   string
	Duplicates []string
	// Bytes is the participating payload below one directory instance.
	Bytes int64
	// Digest labels the group in reports.
	Digest uint64
}

// Merger folds shredder resolutions into directory state. Safe for
// concurrent notification; Finalize must only be called after the
// shredder has completed.
type Merger struct {
	mu    sync.Mutex
	nodes map[string]*DirNode
	order []config.SortCriterion
	roots map[string]struct{}
}

// New creates a Merger. order is the original-selection criteria also
// used for files, applied to directory paths on promotion.
func New(order []config.SortCriterion) *Merger {
	return &Merger{
		nodes: make(map[string]*DirNode),
		order: order,
		roots: make(map[string]struct{}),
	}
}

// AddFile registers a participating file before shredding starts,
// growing the descendant totals of every ancestor directory.
func (m *Merger) AddFile(rec *types.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ascend(rec.Path, func(n *DirNode) {
		n.total++
		n.bytes += rec.Size
		if n.total == 1 {
			n.preferred = rec.Preferred
		} else {
			n.preferred = n.preferred && rec.Preferred
		}
	})
}

// FileResolved folds a duplicate-confirmed file into its ancestors.
// The fold hashes the file's path relative to each ancestor so that two
// directory trees with the same internal layout and content produce
// equal digests regardless of where they live.
func (m *Merger) FileResolved(rec *types.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ascend(rec.Path, func(n *DirNode) {
		rel, err := filepath.Rel(n.path, rec.Path)
		if err != nil {
			n.tainted = true
			return
		}
		h := xxhash.New()
		_, _ = h.WriteString(rel)
		_, _ = h.Write([]byte{0x1f})
		_, _ = h.Write(rec.Digest)
		v := h.Sum64()
		n.foldXor ^= v
		n.foldSum += v
		n.confirmed++
	})
}

// FileUnique taints every ancestor: a directory with a unique
// descendant is not a duplicate of anything.
func (m *Merger) FileUnique(rec *types.FileRecord) {
	m.taint(rec.Path)
}

// FileRejected taints every ancestor: an unreadable descendant leaves
// the directory's content unproven.
func (m *Merger) FileRejected(rec *types.FileRecord) {
	m.taint(rec.Path)
}

func (m *Merger) taint(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ascend(path, func(n *DirNode) {
		n.tainted = true
	})
}

// ascend visits (creating on demand) the DirNode of every ancestor
// directory of a file path, nearest parent first.
func (m *Merger) ascend(filePath string, visit func(n *DirNode)) {
	dir := filepath.Dir(filePath)
	for {
		n, ok := m.nodes[dir]
		if !ok {
			n = &DirNode{path: dir}
			m.nodes[dir] = n
		}
		visit(n)

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Finalize groups finished directories by fold digest and promotes
// groups of two or more. Only topmost directories are reported: when a
// whole tree is duplicated, its subdirectories also pairwise match, and
// reporting them separately would restate the same finding.
func (m *Merger) Finalize() []Finding {
	m.mu.Lock()
	defer m.mu.Unlock()

	byFold := make(map[foldKey][]*DirNode)
	for _, n := range m.nodes {
		if n.finished() {
			key := foldKey{xor: n.foldXor, sum: n.foldSum, files: n.total}
			byFold[key] = append(byFold[key], n)
		}
	}

	promoted := make(map[string]*DirNode)
	keys := make([]foldKey, 0, len(byFold))
	for key, group := range byFold {
		if len(group) >= 2 {
			keys = append(keys, key)
			for _, n := range group {
				promoted[n.path] = n
			}
		}
	}

	var findings []Finding
	for _, key := range keys {
		group := byFold[key]
		topmost := group[:0]
		for _, n := range group {
			if !underAny(n.path, promoted, n) {
				topmost = append(topmost, n)
			}
		}
		if len(topmost) < 2 {
			continue
		}

		original := chooseOriginal(topmost, m.order)
		f := Finding{Original: original.path, Bytes: original.bytes, Digest: key.xor}
		for _, n := range topmost {
			if n != original {
				f.Duplicates = append(f.Duplicates, n.path)
			}
		}
		sort.Strings(f.Duplicates)
		findings = append(findings, f)
	}

	sort.Slice(findings, func(i, j int) bool { return findings[i].Original < findings[j].Original })

	for _, f := range findings {
		m.roots[f.Original] = struct{}{}
		for _, d := range f.Duplicates {
			m.roots[d] = struct{}{}
		}
	}
	return findings
}

// Suppressed reports whether path lies inside a promoted duplicate
// directory, in which case its individual duplicate-file finding is
// subsumed by the directory finding. Valid only after Finalize.
func (m *Merger) Suppressed(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir := filepath.Dir(path)
	for {
		if _, ok := m.roots[dir]; ok {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// underAny reports whether some strict ancestor of n.path is itself a
// promoted directory.
func underAny(path string, promoted map[string]*DirNode, self *DirNode) bool {
	dir := filepath.Dir(path)
	for {
		if p, ok := promoted[dir]; ok && p != self {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// chooseOriginal applies the configured sort criteria to directories:
// 'p' prefers tagged-root directories, 'a' (and any other key, since
// directories have no single mtime) falls back to path order.
func chooseOriginal(nodes []*DirNode, order []config.SortCriterion) *DirNode {
	best := nodes[0]
	for _, n := range nodes[1:] {
		if compareNodes(n, best, order) < 0 {
			best = n
		}
	}
	return best
}

func compareNodes(a, b *DirNode, order []config.SortCriterion) int {
	for _, c := range order {
		var cmp int
		switch c.Key {
		case 'p':
			cmp = rank(b.preferred) - rank(a.preferred)
		default:
			cmp = strings.Compare(a.path, b.path)
		}
		if c.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return strings.Compare(a.path, b.path)
}

func rank(preferred bool) int {
	if preferred {
		return 1
	}
	return 0
}
