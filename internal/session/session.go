// Package session owns one run of the lint-finding pipeline: the phase
// state machine, the immutable configuration, the digest cache handle,
// the per-device scheduler registry, the counters surfaced through
// PROGRESS items, and the formatter sinks notified at every phase
// transition and for every finding.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ivoronin/lint/internal/applog"
	"github.com/ivoronin/lint/internal/cache"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/digest"
	"github.com/ivoronin/lint/internal/formatter"
	"github.com/ivoronin/lint/internal/lint"
	"github.com/ivoronin/lint/internal/scanner"
	"github.com/ivoronin/lint/internal/scheduler"
	"github.com/ivoronin/lint/internal/screener"
	"github.com/ivoronin/lint/internal/treemerge"
	"github.com/ivoronin/lint/internal/types"
	"github.com/ivoronin/lint/internal/verifier"
)

// Counters are the run-wide numeric accumulators surfaced through
// PROGRESS items and the final summary.
type Counters struct {
	FilesScanned    atomic.Int64
	BytesScanned    atomic.Int64
	BytesRead       atomic.Int64
	DuplicatesFound atomic.Int64
}

// Session drives the pipeline phases in order. Single-use: create with
// New, call Run once.
type Session struct {
	cfg          *config.Config
	log          *applog.Logger
	showProgress bool

	sinks     []formatter.Formatter
	counters  Counters
	cancelled atomic.Bool
	groupIDs  int
}

// New builds a Session: it instantiates and configures every formatter
// named in the config's output specs. A bad formatter name or option is
// a configuration error.
func New(cfg *config.Config, log *applog.Logger, showProgress bool) (*Session, error) {
	registry := formatter.NewRegistry()
	formatter.Builtins(registry)

	s := &Session{cfg: cfg, log: log, showProgress: showProgress}
	for _, spec := range cfg.OutputSpecs {
		name, path := formatter.SplitSpec(spec)
		f, err := registry.New(name, path)
		if err != nil {
			return nil, err
		}
		if err := f.Configure(cfg.FormatterKV[name]); err != nil {
			return nil, lint.New(lint.KindConfig, "", fmt.Errorf("formatter %s: %w", name, err))
		}
		s.sinks = append(s.sinks, f)
	}
	return s, nil
}

// Cancel requests early termination. Run checks the flag once, when
// traversal has finished: if it is set by then, Run returns a Cancelled
// error before preprocessing, with only the traversal findings emitted.
// A cancel that arrives later has no effect on the run.
func (s *Session) Cancel() { s.cancelled.Store(true) }

// AddSink attaches an additional formatter beyond the configured output
// specs.
func (s *Session) AddSink(f formatter.Formatter) { s.sinks = append(s.sinks, f) }

// Counters exposes the run-wide accumulators, populated once Run
// returns.
func (s *Session) Counters() *Counters { return &s.counters }

// Run executes the pipeline to completion.
func (s *Session) Run() error {
	s.setPhase(lint.PhaseInit)

	factory, err := s.newDigestFactory()
	if err != nil {
		return err
	}
	hashCache := s.openCache()
	defer func() {
		if err := hashCache.Close(); err != nil {
			s.log.Warning(lint.New(lint.KindCache, "", err))
		}
	}()

	errCh := make(chan error, 100)
	var drainWg sync.WaitGroup
	drainWg.Add(1)
	go func() {
		defer drainWg.Done()
		s.log.Drain(errCh)
	}()

	records := s.traverse(errCh)
	if s.cancelled.Load() {
		close(errCh)
		drainWg.Wait()
		return lint.New(lint.KindCancelled, "", fmt.Errorf("cancelled after traversal"))
	}

	s.setPhase(lint.PhasePreprocess)
	s.ingestXattrs(records)
	screenRes := screener.New(records, s.cfg, hashCache, s.showProgress).Run()

	s.setPhase(lint.PhaseShred)
	merger := s.newMerger(records)
	var observer verifier.Observer
	if merger != nil {
		observer = merger
	}
	devices := scheduler.NewRegistry(s.cfg.Threads)
	shredRes := verifier.New(screenRes.Candidates, s.cfg, factory, devices, hashCache,
		s.cfg.Threads, s.showProgress, errCh, observer).Run()
	devices.StopAll()
	s.counters.BytesRead.Add(shredRes.BytesRead)

	s.classifyCached(screenRes.Resolved, merger)

	s.setPhase(lint.PhaseMerge)
	var dirFindings []treemerge.Finding
	if merger != nil {
		dirFindings = merger.Finalize()
	}
	s.emitDirFindings(dirFindings)
	s.emitFileFindings(screenRes.Resolved, merger)
	s.emitFileFindings(shredRes.Duplicates, merger)
	s.emitUnfinished(records)

	s.setPhase(lint.PhasePreShutdown)
	s.writeXattrs(records)
	close(errCh)
	drainWg.Wait()

	s.setPhase(lint.PhaseSummary)
	s.emit(formatter.Item{
		Kind:            formatter.KindProgress,
		Phase:           lint.PhaseSummary,
		FilesScanned:    s.counters.FilesScanned.Load(),
		BytesScanned:    s.counters.BytesScanned.Load(),
		BytesRead:       s.counters.BytesRead.Load(),
		DuplicatesFound: s.counters.DuplicatesFound.Load(),
	})
	for _, f := range s.sinks {
		if err := f.Flush(); err != nil {
			s.log.Warning(err)
		}
	}
	return nil
}

// newDigestFactory seeds the hash factory with session-unique entropy,
// so seeded hashes cannot be forced into cross-run collisions.
func (s *Session) newDigestFactory() (*digest.Factory, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("seed digest factory: %w", err)
	}
	seed1 := binary.LittleEndian.Uint64(buf[0:8])
	seed2 := binary.LittleEndian.Uint64(buf[8:16])
	factory := digest.NewFactory(seed1, seed2)

	if s.cfg.Algorithm != digest.Paranoid {
		if _, err := factory.New(s.cfg.Algorithm); err != nil {
			return nil, lint.New(lint.KindConfig, "", err)
		}
	}
	return factory, nil
}

// openCache opens the sidecar digest cache. A corrupt or unopenable
// cache file is a warning, never fatal: the run proceeds uncached.
func (s *Session) openCache() *cache.Cache {
	var primary string
	var extra []string
	if len(s.cfg.CachePaths) > 0 {
		primary = s.cfg.CachePaths[0]
		extra = s.cfg.CachePaths[1:]
	}
	c, err := cache.Open(primary, extra...)
	if err != nil {
		s.log.Warning(lint.New(lint.KindCache, primary, err))
		c, _ = cache.Open("")
	}
	return c
}

// traverse runs the Traverser, forwarding its immediate lint findings
// (filtered by the lint-type selector) to the sinks as they surface.
func (s *Session) traverse(errCh chan error) []*types.FileRecord {
	s.setPhase(lint.PhaseTraverse)

	findingsCh := make(chan formatter.Item, 100)
	var fwdWg sync.WaitGroup
	fwdWg.Add(1)
	go func() {
		defer fwdWg.Done()
		for item := range findingsCh {
			if s.cfg.Lint.Enabled(lintTypeOf(item.Kind)) {
				s.emit(item)
			}
		}
	}()

	records := scanner.New(s.cfg, s.cfg.Threads, s.showProgress, errCh, findingsCh).Run()
	close(findingsCh)
	fwdWg.Wait()

	s.counters.FilesScanned.Store(int64(len(records)))
	for _, rec := range records {
		s.counters.BytesScanned.Add(rec.Size)
	}
	return records
}

// ingestXattrs attaches digests mirrored in extended attributes before
// the screener runs, so xattr hits resolve without the sidecar cache.
func (s *Session) ingestXattrs(records []*types.FileRecord) {
	if !s.cfg.XattrRead {
		return
	}
	for _, rec := range records {
		if d := cache.XattrLookup(rec, s.cfg.Algorithm); d != nil {
			rec.Digest = d
			rec.Algorithm = s.cfg.Algorithm
			rec.ReadOffset = rec.Size
		}
	}
}

// newMerger builds the tree merger when directory merging is on,
// pre-registering every record that participates in duplicate
// detection. Records the screener already demoted to UNIQUE taint
// their ancestors immediately.
func (s *Session) newMerger(records []*types.FileRecord) *treemerge.Merger {
	if !s.cfg.MergeDirectories || !s.cfg.Lint.Enabled(config.LintDuplicateDir) {
		return nil
	}
	m := treemerge.New(s.cfg.SortOrder)
	for _, rec := range records {
		m.AddFile(rec)
	}
	for _, rec := range records {
		if rec.Class == types.Unique {
			m.FileUnique(rec)
		}
	}
	return m
}

// classifyCached terminally classifies the groups the screener resolved
// straight from cached digests, mirroring what the shredder does for
// groups it read itself.
func (s *Session) classifyCached(groups types.DuplicateGroups, merger *treemerge.Merger) {
	for _, group := range groups.Items() {
		var records []*types.FileRecord
		for _, cluster := range group.Items() {
			rep := types.ChooseOriginal(cluster.Items(), s.cfg.SortOrder)
			for _, rec := range cluster.Items() {
				rec.Digest = rep.Digest
				rec.Algorithm = rep.Algorithm
				rec.ReadOffset = rec.Size
				records = append(records, rec)
			}
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
			if merger != nil {
				merger.FileResolved(rec)
			}
		}
	}
}

func (s *Session) emitDirFindings(findings []treemerge.Finding) {
	for _, f := range findings {
		s.groupIDs++
		groupID := s.groupIDs
		digestLabel := fmt.Sprintf("%016x", f.Digest)

		s.emit(formatter.Item{
			Kind:    formatter.KindDuplicateDir,
			GroupID: groupID,
			Path:    f.Original,
			Size:    f.Bytes,
			Digest:  digestLabel,
			Role:    formatter.RoleOriginal,
		})
		for _, dup := range f.Duplicates {
			s.counters.DuplicatesFound.Add(1)
			s.emit(formatter.Item{
				Kind:         formatter.KindDuplicateDir,
				GroupID:      groupID,
				Path:         dup,
				Size:         f.Bytes,
				Digest:       digestLabel,
				Role:         formatter.RoleDuplicate,
				OriginalPath: f.Original,
			})
		}
	}
}

// emitFileFindings renders resolved groups as DUPLICATE_FILE items,
// applying directory suppression, the hardlink reporting policy and the
// lint-type selector.
func (s *Session) emitFileFindings(groups types.DuplicateGroups, merger *treemerge.Merger) {
	if !s.cfg.Lint.Enabled(config.LintDuplicateFile) {
		return
	}
	for _, group := range groups.Items() {
		records := s.reportableRecords(group)
		if merger != nil {
			kept := records[:0]
			for _, rec := range records {
				if !merger.Suppressed(rec.Path) {
					kept = append(kept, rec)
				}
			}
			records = kept
		}
		if len(records) < 2 {
			continue
		}

		original := types.ChooseOriginal(records, s.cfg.SortOrder)
		s.groupIDs++
		groupID := s.groupIDs
		s.emitOne(original, original, groupID)
		for _, rec := range records {
			if rec != original {
				s.emitOne(rec, original, groupID)
			}
		}
	}
}

// reportableRecords flattens a group's clusters into the records that
// may appear in reports: every path when hardlinked duplicates are
// reported, one representative per physical file otherwise.
func (s *Session) reportableRecords(group types.DuplicateGroup) []*types.FileRecord {
	var records []*types.FileRecord
	for _, cluster := range group.Items() {
		if s.cfg.ReportHardlinked {
			records = append(records, cluster.Items()...)
			continue
		}
		records = append(records, types.ChooseOriginal(cluster.Items(), s.cfg.SortOrder))
	}
	return records
}

func (s *Session) emitOne(rec, original *types.FileRecord, groupID int) {
	item := formatter.Item{
		Kind:    formatter.KindDuplicateFile,
		GroupID: groupID,
		Path:    rec.Path,
		Size:    rec.Size,
		Digest:  hex.EncodeToString(rec.Digest),
	}
	if rec.Class == types.Original || rec == original {
		item.Role = formatter.RoleOriginal
	} else {
		item.Role = formatter.RoleDuplicate
		item.OriginalPath = original.Path
		s.counters.DuplicatesFound.Add(1)
	}
	s.emit(item)
}

// emitUnfinished reports the partial digests of unique files when the
// write-unfinished option is set.
func (s *Session) emitUnfinished(records []*types.FileRecord) {
	if !s.cfg.WriteUnfinished {
		return
	}
	for _, rec := range records {
		if rec.Class == types.Unique && len(rec.Digest) > 0 {
			s.emit(formatter.Item{
				Kind:   formatter.KindUniqueFile,
				Path:   rec.Path,
				Size:   rec.Size,
				Digest: hex.EncodeToString(rec.Digest),
			})
		}
	}
}

// writeXattrs mirrors full-file digests into extended attributes at
// shutdown. Only the first failure is logged: on filesystems without
// xattr support every store fails the same way.
func (s *Session) writeXattrs(records []*types.FileRecord) {
	if !s.cfg.XattrWrite {
		return
	}
	warned := false
	for _, rec := range records {
		if len(rec.Digest) == 0 || rec.ReadOffset != rec.Size {
			continue
		}
		if err := cache.XattrStore(rec, s.cfg.Algorithm, rec.Digest); err != nil && !warned {
			s.log.Warning(lint.New(lint.KindCache, rec.Path, err))
			warned = true
		}
	}
}

func (s *Session) setPhase(p lint.Phase) {
	for _, f := range s.sinks {
		if err := f.OnStateChange(p); err != nil {
			s.log.Warning(err)
		}
	}
}

func (s *Session) emit(item formatter.Item) {
	for _, f := range s.sinks {
		if err := f.Accept(item); err != nil {
			s.log.Warning(err)
		}
	}
}

// lintTypeOf maps a traversal finding kind to its selector entry.
func lintTypeOf(kind formatter.ItemKind) config.LintType {
	switch kind {
	case formatter.KindEmptyFile:
		return config.LintEmptyFile
	case formatter.KindEmptyDir:
		return config.LintEmptyDir
	case formatter.KindBadUID:
		return config.LintBadUID
	case formatter.KindBadGID:
		return config.LintBadGID
	case formatter.KindBrokenSymlink:
		return config.LintBrokenSymlink
	case formatter.KindNonStripped:
		return config.LintNonStripped
	default:
		return config.LintDuplicateFile
	}
}
