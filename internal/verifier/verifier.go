// Package verifier is the shredder: it refines candidate groups through
// successive read rounds until every file is classified.
//
// # Architecture Overview
//
// Each candidate group is refined through rounds. In one round every
// member's next increment is read (through the per-device scheduler, so
// reads on one device happen in physical-offset order), folded into the
// member's running digest, and the group is re-partitioned by digest
// value. Sub-groups that still agree survive to the next round with a
// geometrically larger increment; sub-groups reduced to one member are
// demoted to UNIQUE; sub-groups that agree at end of range are resolved
// as duplicates.
//
// # Concurrency Model
//
// The same three components as the traversal and screening stages:
//
//  1. WORKER GOROUTINES (fixed pool)
//     - N workers consume round jobs from the queue
//     - Each worker reads all members of its group (reads fan out into
//       the device schedulers, which bound actual I/O concurrency)
//
//  2. COLLECTOR (main goroutine)
//     - Reads resolved groups from the results channel
//
//  3. ORCHESTRATOR (goroutines)
//     - Queues initial jobs, closes the queue when pending work is done,
//       closes results when the worker pool exits
//
// # Round Sizing
//
// The first round reads a small prefix: cheap, and it already splits
// most same-size-different-content groups. Each following round grows
// the increment geometrically up to a ceiling, clamped so one group's
// outstanding reads on a device stay within a fixed budget -- huge reads
// would starve groups that could have been resolved with less.
package verifier

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/lint/internal/cache"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/digest"
	"github.com/ivoronin/lint/internal/progress"
	"github.com/ivoronin/lint/internal/scheduler"
	"github.com/ivoronin/lint/internal/types"
)

const (
	// minIncrement is the first-round read size.
	minIncrement = 4 << 10
	// maxIncrement is the per-round read ceiling.
	maxIncrement = 16 << 20
	// incrementGrowth multiplies the increment between rounds.
	incrementGrowth = 8
	// groupReadBudget caps one group's outstanding bytes per round so a
	// single wide group cannot monopolize its device.
	groupReadBudget = 64 << 20
)

// Observer receives per-file classification events as they happen. The
// tree merger subscribes through this to fold resolutions bottom-up
// while shredding is still in flight.
type Observer interface {
	FileResolved(rec *types.FileRecord)
	FileUnique(rec *types.FileRecord)
	FileRejected(rec *types.FileRecord)
}

// member is one hardlink cluster inside a round job. Only the cluster
// representative is ever read; followers inherit its outcome on
// resolution.
type member struct {
	cluster types.HardlinkCluster
	rep     *types.FileRecord
	alg     digest.Algorithm
}

// job is one group's next round: read [offset, offset+increment) from
// every member, then partition.
type job struct {
	members  []*member
	offset   int64 // absolute offset of the next read
	lo, hi   int64 // effective byte range after clamping
	round    int
	paranoid bool // byte-compare chunks instead of trusting digests
}

type stats struct {
	totalCandidateBytes uint64
	readBytes           atomic.Int64
	skippedBytes        atomic.Uint64
	confirmedCandidates atomic.Int64
	confirmedBytes      atomic.Uint64
	confirmedSets       atomic.Int64
	startTime           time.Time
}

func (s *stats) String() string {
	read := uint64(s.readBytes.Load())
	skipped := s.skippedBytes.Load()
	pct := 0.0
	if s.totalCandidateBytes > 0 {
		pct = float64(read+skipped) / float64(s.totalCandidateBytes) * 100
	}
	return fmt.Sprintf("Read %s + skipped %s out of %s (%.0f%%), confirmed %d duplicates (%s) in %d sets in %v",
		humanize.IBytes(read), humanize.IBytes(skipped), humanize.IBytes(s.totalCandidateBytes), pct,
		s.confirmedCandidates.Load(), humanize.IBytes(s.confirmedBytes.Load()), s.confirmedSets.Load(),
		time.Since(s.startTime).Truncate(time.Millisecond))
}

// Result is the shredder's output: resolved duplicate groups plus the
// byte counters the session surfaces through PROGRESS items.
type Result struct {
	Duplicates types.DuplicateGroups
	BytesRead  int64
}

// Shredder classifies candidate groups by progressive content reading.
//
// Single-use: create with New, call Run once.
type Shredder struct {
	groups       types.CandidateGroups
	cfg          *config.Config
	factory      *digest.Factory
	devices      *scheduler.Registry
	cache        *cache.Cache
	workers      int
	showProgress bool
	errCh        chan error
	observer     Observer
	comparator   *digest.Comparator

	groupIDs  atomic.Int64
	jobCh     chan job
	resultsCh chan types.DuplicateGroup
	pending   sync.WaitGroup
	workerWg  sync.WaitGroup
	bar       *progress.Bar
	stats     *stats
}

// New creates a Shredder. Use cache.Open("") for a disabled cache;
// observer may be nil when directory merging is off.
func New(groups types.CandidateGroups, cfg *config.Config, factory *digest.Factory,
	devices *scheduler.Registry, hashCache *cache.Cache,
	workers int, showProgress bool, errCh chan error, observer Observer,
) *Shredder {
	return &Shredder{
		groups:       groups,
		cfg:          cfg,
		factory:      factory,
		devices:      devices,
		cache:        hashCache,
		workers:      workers,
		showProgress: showProgress,
		errCh:        errCh,
		observer:     observer,
		comparator:   digest.NewParanoidComparator(cfg.ParanoidMemBudget),
	}
}

// Run drives every candidate group to a terminal state and returns the
// confirmed duplicate groups.
func (s *Shredder) Run() Result {
	if s.groups.Len() == 0 {
		return Result{Duplicates: types.NewDuplicateGroups(nil)}
	}

	var totalCandidateBytes uint64
	for _, cg := range s.groups.Items() {
		totalCandidateBytes += uint64(cg.First().First().Size) * uint64(cg.Len())
	}

	s.jobCh = make(chan job, 1000)
	s.resultsCh = make(chan types.DuplicateGroup, 100)
	s.bar = progress.New(s.showProgress, int64(totalCandidateBytes))
	s.stats = &stats{totalCandidateBytes: totalCandidateBytes, startTime: time.Now()}
	s.bar.Describe(s.stats)

	for i := 0; i < s.workers; i++ {
		s.workerWg.Add(1)
		go func() {
			defer s.workerWg.Done()
			for j := range s.jobCh {
				s.processJob(j)
			}
		}()
	}

	s.pending.Add(s.groups.Len())
	go func() {
		for _, cg := range s.groups.Items() {
			s.jobCh <- s.initialJob(cg)
		}
	}()

	go func() {
		s.pending.Wait()
		close(s.jobCh)
	}()

	go func() {
		s.workerWg.Wait()
		close(s.resultsCh)
	}()

	var duplicates []types.DuplicateGroup
	for group := range s.resultsCh {
		duplicates = append(duplicates, group)
		s.stats.confirmedCandidates.Add(int64(group.Len() - 1))
		s.stats.confirmedBytes.Add(uint64(group.First().First().Size) * uint64(group.Len()-1))
		s.stats.confirmedSets.Add(1)
		s.bar.Describe(s.stats)
	}

	s.bar.Finish(s.stats)
	return Result{
		Duplicates: types.NewDuplicateGroups(duplicates),
		BytesRead:  s.stats.readBytes.Load(),
	}
}

// initialJob builds a group's first round. All members share one size,
// so the clamp window is resolved once here.
func (s *Shredder) initialJob(cg types.CandidateGroup) job {
	size := cg.First().First().Size
	lo, hi := s.clampRange(size)

	members := make([]*member, 0, cg.Len())
	for _, cluster := range cg.Items() {
		members = append(members, &member{
			cluster: cluster,
			rep:     types.ChooseOriginal(cluster.Items(), s.cfg.SortOrder),
			alg:     s.newAlgorithm(),
		})
	}
	return job{members: members, offset: lo, lo: lo, hi: hi, paranoid: s.cfg.Algorithm == digest.Paranoid}
}

// clampRange resolves the configured clamp window for a file size.
// Without a clamp the window is the whole file.
func (s *Shredder) clampRange(size int64) (lo, hi int64) {
	if !s.cfg.HasClamp {
		return 0, size
	}
	lo = s.cfg.ClampLow.Resolve(size)
	hi = s.cfg.ClampHigh.Resolve(size)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// newAlgorithm builds the per-member running digest. Paranoid mode
// splits on raw bytes, but members still carry a strong hash so
// resolved files have a digest for reports, caching and the tree fold.
func (s *Shredder) newAlgorithm() digest.Algorithm {
	name := s.cfg.Algorithm
	if name == digest.Paranoid {
		name = "sha256"
	}
	alg, err := s.factory.New(name)
	if err != nil {
		// The algorithm name was validated at config time; an unknown
		// name here is a programming error.
		panic(err)
	}
	return alg
}

// increment returns the read size for a round, grown geometrically from
// minIncrement and clamped by the ceiling, the group's read budget and
// the remaining range.
func (j *job) increment() int64 {
	inc := int64(minIncrement)
	for i := 0; i < j.round; i++ {
		inc *= incrementGrowth
		if inc >= maxIncrement {
			inc = maxIncrement
			break
		}
	}
	if budget := int64(groupReadBudget) / int64(len(j.members)); inc > budget {
		inc = budget
	}
	if inc < minIncrement {
		inc = minIncrement
	}
	if remaining := j.hi - j.offset; inc > remaining {
		inc = remaining
	}
	return inc
}

// readOutcome is one member's round result before partitioning. data
// is retained only in paranoid mode, where the partition key is the
// chunk itself.
type readOutcome struct {
	m    *member
	key  string
	data []byte
	err  error
}

// processJob runs one round for one group: read, partition, route.
func (s *Shredder) processJob(j job) {
	defer s.pending.Done()

	// An empty effective range cannot distinguish anything: every file
	// clamped down to zero bytes is classified UNIQUE rather than
	// reported as a duplicate of whatever else the clamp erased.
	if j.hi <= j.lo {
		for _, m := range j.members {
			s.markUnique(m)
		}
		return
	}

	inc := j.increment()

	if j.paranoid && !s.comparator.Fits(len(j.members), inc) {
		// Over the paranoid memory budget: fall back to strong hashing
		// for this group, restarting from the low clamp edge so the
		// digests cover the full window.
		for _, m := range j.members {
			m.alg = s.newAlgorithm()
			m.rep.ReadOffset = 0
		}
		j.paranoid = false
		j.offset = j.lo
		s.requeue(j)
		return
	}

	outcomes := s.readRound(j, inc)
	if j.paranoid {
		s.compareChunks(outcomes)
	}

	survivors := make(map[string][]*member, 2)
	for _, o := range outcomes {
		if o.err != nil {
			s.markRejected(o.m, o.err)
			continue
		}
		survivors[o.key] = append(survivors[o.key], o.m)
	}

	for _, sub := range survivors {
		if len(sub) < 2 {
			for _, m := range sub {
				fileSize := m.rep.Size
				s.stats.skippedBytes.Add(uint64(fileSize - (j.offset + inc)))
				s.markUnique(m)
			}
			s.updateBar()
			continue
		}
		next := job{
			members:  sub,
			offset:   j.offset + inc,
			lo:       j.lo,
			hi:       j.hi,
			round:    j.round + 1,
			paranoid: j.paranoid,
		}
		if next.offset >= j.hi {
			s.resolve(sub, j.hi)
			continue
		}
		s.requeue(next)
	}
}

func (s *Shredder) requeue(j job) {
	s.pending.Add(1)
	go func() { s.jobCh <- j }()
}

// readRound reads one increment from every member through the member's
// device scheduler and returns the partition key per member: the raw
// chunk in paranoid mode, the digest snapshot otherwise. Either way the
// chunk is folded into the member's running digest.
func (s *Shredder) readRound(j job, inc int64) []readOutcome {
	outcomes := make([]readOutcome, len(j.members))
	var wg sync.WaitGroup
	for i, m := range j.members {
		wg.Add(1)
		go func(i int, m *member) {
			defer wg.Done()
			data, err := s.devices.For(m.rep.Dev).Submit(m.rep, j.offset, inc)
			if err == nil && int64(len(data)) < inc {
				// The candidate's stat size promised more bytes; a short
				// read means the file changed underneath us.
				err = fmt.Errorf("%s: short read at %d: got %d of %d bytes",
					m.rep.Path, j.offset, len(data), inc)
			}
			if err != nil {
				outcomes[i] = readOutcome{m: m, err: err}
				return
			}
			m.alg.Update(data)
			m.rep.ReadOffset = j.offset + int64(len(data))
			s.stats.readBytes.Add(int64(len(data)))

			if j.paranoid {
				outcomes[i] = readOutcome{m: m, data: data}
				return
			}
			outcomes[i] = readOutcome{m: m, key: string(m.alg.Snapshot())}
		}(i, m)
	}
	wg.Wait()
	s.updateBar()
	return outcomes
}

// updateBar advances the determinate bar by accounted-for bytes: read
// ones plus the ones early elimination made unnecessary.
func (s *Shredder) updateBar() {
	s.bar.Set(uint64(s.stats.readBytes.Load()) + s.stats.skippedBytes.Load())
	s.bar.Describe(s.stats)
}

// compareChunks assigns paranoid partition keys: members whose bytes
// match the designated reference (the first readable member) share its
// group, everyone else is keyed by their own chunk so mutually-equal
// divergents still end up together.
func (s *Shredder) compareChunks(outcomes []readOutcome) {
	var ref []byte
	haveRef := false
	for i := range outcomes {
		o := &outcomes[i]
		if o.err != nil {
			continue
		}
		if !haveRef {
			ref = o.data
			haveRef = true
			o.key = ""
			continue
		}
		if s.comparator.Compare(ref, [][]byte{o.data}) == -1 {
			o.key = ""
			continue
		}
		o.key = string(o.data)
	}
}

// resolve terminates a fully-read sub-group: every member is a mutual
// duplicate. One original is chosen over all records (followers
// included), the rest become duplicates, and full-window digests are
// written back to the cache.
func (s *Shredder) resolve(sub []*member, hi int64) {
	groupID := int(s.groupIDs.Add(1))

	var records []*types.FileRecord
	for _, m := range sub {
		snap := m.alg.Snapshot()
		for _, rec := range m.cluster.Items() {
			rec.Digest = snap
			rec.Algorithm = s.cfg.Algorithm
			rec.ReadOffset = hi
			rec.GroupID = groupID
			records = append(records, rec)
		}
		s.storeCache(m.rep, snap)
	}

	original := types.ChooseOriginal(records, s.cfg.SortOrder)
	for _, rec := range records {
		switch {
		case rec == original:
			rec.Class = types.Original
		case s.cfg.KeepAllTagged && rec.Preferred:
			rec.Class = types.Original
		case s.cfg.KeepAllUntagged && !rec.Preferred:
			rec.Class = types.Original
		default:
			rec.Class = types.Duplicate
		}
		if s.observer != nil {
			s.observer.FileResolved(rec)
		}
	}

	clusters := make([]types.HardlinkCluster, 0, len(sub))
	for _, m := range sub {
		clusters = append(clusters, m.cluster)
	}
	s.resultsCh <- types.NewDuplicateGroup(clusters)
}

// storeCache persists a full-file digest. Clamped windows are never
// cached: a digest over a partial range would satisfy a later
// unclamped run's lookup with wrong data.
func (s *Shredder) storeCache(rep *types.FileRecord, snap []byte) {
	if s.cfg.HasClamp || rep.ReadOffset != rep.Size {
		return
	}
	if err := s.cache.Store(rep, s.cfg.Algorithm, snap); err != nil {
		s.sendError(fmt.Errorf("cache store %s: %w", rep.Path, err))
	}
}

func (s *Shredder) markUnique(m *member) {
	var partial []byte
	if s.cfg.WriteUnfinished && m.rep.ReadOffset > 0 {
		partial = m.alg.Snapshot()
	}
	for _, rec := range m.cluster.Items() {
		if partial != nil {
			rec.Digest = partial
			rec.Algorithm = s.cfg.Algorithm
		}
		rec.ReadOffset = m.rep.ReadOffset
		rec.Class = types.Unique
		if s.observer != nil {
			s.observer.FileUnique(rec)
		}
	}
}

func (s *Shredder) markRejected(m *member, err error) {
	s.sendError(&readError{path: m.rep.Path, err: err})
	for _, rec := range m.cluster.Items() {
		rec.Class = types.Rejected
		rec.ClassErr = err
		if s.observer != nil {
			s.observer.FileRejected(rec)
		}
	}
}

func (s *Shredder) sendError(err error) {
	if s.errCh != nil {
		s.errCh <- err
	}
}

// readError wraps a per-member read failure. The member is removed from
// its group; the rest of the group proceeds.
type readError struct {
	path string
	err  error
}

func (e *readError) Error() string { return e.path + ": " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }
