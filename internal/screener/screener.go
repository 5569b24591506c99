// Package screener preprocesses the traverser's output into candidate
// duplicate sets: cache ingestion, hardlink clustering, initial
// size/basename/extension bucketing, singleton pruning, and the
// tagged/untagged applicability filters. Everything here is
// single-threaded and free of file I/O; only digests already sitting
// in the cache are consulted.
package screener

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/lint/internal/cache"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/progress"
	"github.com/ivoronin/lint/internal/types"
)

// Result is the preprocessing output: CandidateGroups still requiring
// content verification by the shredder, plus groups already resolved
// straight from the cache. A fully cached group resolves, and a cached
// singleton becomes UNIQUE, without the shredder reading a byte.
type Result struct {
	Candidates types.CandidateGroups
	Resolved   types.DuplicateGroups
}

// Screener groups FileRecords into candidate duplicate sets.
//
// Single-use: create with New, call Run once.
type Screener struct {
	files        []*types.FileRecord
	cfg          *config.Config
	cache        *cache.Cache
	showProgress bool
}

// New creates a Screener. hashCache may be a disabled cache
// (cache.Open("")) -- never nil.
func New(files []*types.FileRecord, cfg *config.Config, hashCache *cache.Cache, showProgress bool) *Screener {
	return &Screener{files: files, cfg: cfg, cache: hashCache, showProgress: showProgress}
}

type stats struct {
	candidateFiles int
	candidateBytes int64
	cachedFiles    int
	startTime      time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Selected %d candidates (%s), %d resolved from cache, in %.1fs",
		s.candidateFiles, humanize.IBytes(uint64(s.candidateBytes)), s.cachedFiles,
		time.Since(s.startTime).Seconds())
}

// Run executes the preprocessing steps in order: cache ingestion,
// hardlink clustering, size/basename bucketing, applicability
// filtering, singleton pruning.
func (s *Screener) Run() Result {
	bar := progress.New(s.showProgress, -1)
	st := &stats{startTime: time.Now()}

	s.ingestCache(st)
	clusters := s.clusterHardlinks()
	buckets := s.bucketByKey(clusters)

	var candidates []types.CandidateGroup
	var resolved []types.DuplicateGroup

	for _, bucket := range buckets {
		if !s.applicable(bucket) {
			markUnique(bucket)
			continue
		}

		cachedClusters, freshClusters := s.splitByCacheState(bucket)
		if len(cachedClusters) > 0 && len(freshClusters) > 0 {
			// Mixed bucket: cached digests were minted under an earlier
			// run's hash seeds and cannot be compared with digests
			// computed now. Re-read the cached members alongside the
			// fresh ones so the whole bucket stays comparable.
			for _, c := range cachedClusters {
				for _, r := range c.Items() {
					r.Digest = nil
					r.Algorithm = ""
					r.ReadOffset = 0
				}
			}
			freshClusters = append(freshClusters, cachedClusters...)
			cachedClusters = nil
		}
		resolved = append(resolved, s.resolveCached(cachedClusters)...)

		if len(freshClusters) < 2 {
			markUnique(freshClusters)
			continue
		}
		candidates = append(candidates, types.NewCandidateGroup(freshClusters))
	}

	for _, g := range resolved {
		st.candidateFiles += g.Len() - 1
	}
	for _, g := range candidates {
		st.candidateFiles += g.Len()
		st.candidateBytes += representative(g.First(), s.cfg.SortOrder).Size * int64(g.Len())
	}
	bar.Finish(st)

	return Result{
		Candidates: types.NewCandidateGroups(candidates),
		Resolved:   types.NewDuplicateGroups(resolved),
	}
}

// ingestCache attaches a cached digest to every record the cache has an
// entry for under the configured algorithm, marking it read to the end
// of the file so the Shredder (or this package's own cache-resolution
// path) never has to open it.
func (s *Screener) ingestCache(st *stats) {
	if s.cache == nil {
		return
	}
	for _, rec := range s.files {
		digest, err := s.cache.Lookup(rec, s.cfg.Algorithm)
		if err != nil || digest == nil {
			continue
		}
		rec.Digest = digest
		rec.Algorithm = s.cfg.Algorithm
		rec.ReadOffset = rec.Size
		st.cachedFiles++
	}
}

type devIno struct{ dev, ino uint64 }

// clusterHardlinks partitions files by (device, inode) when hardlinks
// are trusted (the default): one representative per cluster is all the
// Shredder ever reads, and the rest inherit its classification. When
// TrustHardlinks is false each file is its own one-member cluster, so
// hardlinked paths are verified independently and can surface as their
// own duplicate pairs.
func (s *Screener) clusterHardlinks() []types.HardlinkCluster {
	if !s.cfg.TrustHardlinks {
		clusters := make([]types.HardlinkCluster, 0, len(s.files))
		for _, f := range s.files {
			clusters = append(clusters, types.NewHardlinkCluster([]*types.FileRecord{f}))
		}
		return clusters
	}

	byDevIno := make(map[devIno][]*types.FileRecord)
	for _, f := range s.files {
		key := devIno{f.Dev, f.Ino}
		byDevIno[key] = append(byDevIno[key], f)
	}
	clusters := make([]types.HardlinkCluster, 0, len(byDevIno))
	for _, files := range byDevIno {
		clusters = append(clusters, types.NewHardlinkCluster(files))
	}
	return clusters
}

// bucketKey groups clusters of identical size, and optionally
// identical basename / extension / extensionless basename when the
// matching configuration flags enable it.
type bucketKey struct {
	size     int64
	basename string
	ext      string
}

func (s *Screener) bucketKeyFor(rep *types.FileRecord) bucketKey {
	key := bucketKey{size: rep.Size}
	base := filepath.Base(rep.Path)
	ext := filepath.Ext(base)
	if s.cfg.MatchBasename {
		key.basename = base
	}
	if s.cfg.MatchExtension {
		key.ext = ext
	}
	if s.cfg.MatchExtensionless {
		key.basename = strings.TrimSuffix(base, ext)
	}
	return key
}

func (s *Screener) bucketByKey(clusters []types.HardlinkCluster) [][]types.HardlinkCluster {
	byKey := make(map[bucketKey][]types.HardlinkCluster)
	for _, c := range clusters {
		rep := representative(c, s.cfg.SortOrder)
		key := s.bucketKeyFor(rep)
		byKey[key] = append(byKey[key], c)
	}
	buckets := make([][]types.HardlinkCluster, 0, len(byKey))
	for _, b := range byKey {
		buckets = append(buckets, b)
	}
	return buckets
}

// applicable implements the must-match-tagged / must-match-untagged
// filters: a bucket that cannot contain the required tagged/untagged
// mix is discarded outright. The keep-all variants are not a filter --
// they only change which group members may be marked duplicates, which
// classification handles downstream.
func (s *Screener) applicable(bucket []types.HardlinkCluster) bool {
	if !s.cfg.MustMatchTagged && !s.cfg.MustMatchUntagged {
		return true
	}
	var hasTagged, hasUntagged bool
	for _, c := range bucket {
		for _, r := range c.Items() {
			if r.Preferred {
				hasTagged = true
			} else {
				hasUntagged = true
			}
		}
	}
	if s.cfg.MustMatchTagged && !hasTagged {
		return false
	}
	if s.cfg.MustMatchUntagged && !hasUntagged {
		return false
	}
	return true
}

// splitByCacheState separates clusters whose representative already
// carries a full cached digest from those the Shredder still needs to
// read.
func (s *Screener) splitByCacheState(bucket []types.HardlinkCluster) (cached, fresh []types.HardlinkCluster) {
	for _, c := range bucket {
		rep := representative(c, s.cfg.SortOrder)
		if rep.Digest != nil && rep.ReadOffset == rep.Size {
			cached = append(cached, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	return cached, fresh
}

// resolveCached groups cache-hit clusters by their already-known
// digest, resolving groups of two or more without any I/O and demoting
// cache-hit singletons straight to UNIQUE.
func (s *Screener) resolveCached(cached []types.HardlinkCluster) []types.DuplicateGroup {
	byDigest := make(map[string][]types.HardlinkCluster)
	for _, c := range cached {
		rep := representative(c, s.cfg.SortOrder)
		byDigest[string(rep.Digest)] = append(byDigest[string(rep.Digest)], c)
	}

	var groups []types.DuplicateGroup
	for _, clusters := range byDigest {
		if len(clusters) < 2 {
			markUnique(clusters)
			continue
		}
		groups = append(groups, types.NewDuplicateGroup(clusters))
	}
	return groups
}

// representative picks the cluster member the shredder reads on behalf
// of the whole cluster, per the configured original-preference
// ordering.
func representative(c types.HardlinkCluster, order []config.SortCriterion) *types.FileRecord {
	return types.ChooseOriginal(c.Items(), order)
}

// markUnique demotes every pending record across bucket's clusters to
// UNIQUE. Hardlink followers are demoted alongside their
// representative.
func markUnique(bucket []types.HardlinkCluster) {
	for _, c := range bucket {
		for _, r := range c.Items() {
			if r.Class == types.Pending {
				r.Class = types.Unique
			}
		}
	}
}
