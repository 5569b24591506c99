// Package scanner walks the configured roots and produces the
// FileRecords the rest of the pipeline partitions into duplicates,
// alongside the handful of lint findings that are pure per-entry
// predicates: empty files, empty directories, broken symlinks, bad
// UID/GID, and non-stripped binaries.
//
// # Concurrency model
//
// One goroutine per directory, concurrency of directory *listings*
// bounded by a semaphore, a single collector draining a buffered
// result channel. A directory's goroutine waits for its subdirectories
// before deciding whether it is itself empty: emptiness is a
// post-order property, so a directory containing only empty
// directories is itself reported as empty.
package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/formatter"
	"github.com/ivoronin/lint/internal/progress"
	"github.com/ivoronin/lint/internal/types"
)

// Traverser discovers files matching the configured filters by walking
// every root in parallel. Single-use: create with New, call Run once.
type Traverser struct {
	cfg          *config.Config
	workers      int
	showProgress bool
	errCh        chan error
	findingsCh   chan<- formatter.Item

	sem      types.Semaphore
	wg       sync.WaitGroup
	resultCh chan *types.FileRecord
	stats    *stats
	bar      *progress.Bar
}

// New creates a Traverser. findingsCh may be nil if the caller does not
// want per-entry lint findings (e.g. a dry run of only the dedup path).
func New(cfg *config.Config, workers int, showProgress bool, errCh chan error, findingsCh chan<- formatter.Item) *Traverser {
	return &Traverser{
		cfg:          cfg,
		workers:      workers,
		showProgress: showProgress,
		errCh:        errCh,
		findingsCh:   findingsCh,
	}
}

type stats struct {
	scannedFiles atomic.Int64
	matchedFiles atomic.Int64
	scannedBytes atomic.Int64
	matchedBytes atomic.Int64
	startTime    time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d (%s), matched %d files (%s) in %.1fs",
		s.scannedFiles.Load(), humanize.IBytes(uint64(s.scannedBytes.Load())),
		s.matchedFiles.Load(), humanize.IBytes(uint64(s.matchedBytes.Load())),
		time.Since(s.startTime).Seconds())
}

// Run walks every configured root and returns the FileRecords that
// passed the size/mtime filters. Lint findings discovered along the way
// are pushed to findingsCh as they're found, not batched.
func (t *Traverser) Run() []*types.FileRecord {
	t.sem = types.NewSemaphore(t.workers)
	t.bar = progress.New(t.showProgress, -1)
	t.stats = &stats{startTime: time.Now()}
	t.bar.Describe(t.stats)
	t.resultCh = make(chan *types.FileRecord, 1000)

	var results []*types.FileRecord
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for r := range t.resultCh {
			results = append(results, r)
		}
	}()

	for _, root := range t.cfg.Roots {
		t.wg.Add(1)
		go func(root config.Root) {
			defer t.wg.Done()
			absPath, err := filepath.Abs(root.Path)
			if err != nil {
				t.sendError(err)
				return
			}
			info, err := os.Lstat(absPath)
			if err != nil {
				t.sendError(err)
				return
			}
			t.walk(absPath, 0, deviceOf(info), root.Preferred)
		}(root)
	}

	t.wg.Wait()
	close(t.resultCh)
	collectorWg.Wait()

	t.bar.Finish(t.stats)
	return results
}

// dirChild names one subdirectory discovered while listing dir, plus
// whether it inherits the preferred flag.
type dirChild struct {
	path      string
	preferred bool
}

// walk processes one directory: lists it (semaphore-bounded), recurses
// into subdirectories, and reports whether dir turned out to be empty
// (no files and every subdirectory itself empty) once all of its
// children have finished.
func (t *Traverser) walk(dir string, depth int, homeDev uint64, preferred bool) bool {
	t.sem.Acquire()
	files, subdirs, err := t.listDirectory(dir, preferred)
	t.sem.Release()
	if err != nil {
		t.sendError(err)
		return false
	}

	if t.cfg.MaxDepth >= 0 && depth >= t.cfg.MaxDepth {
		subdirs = nil
	}
	if !t.cfg.CrossDevice {
		subdirs = t.sameDeviceOnly(subdirs, homeDev)
	}

	childEmptyCh := make(chan bool, len(subdirs))
	for _, sd := range subdirs {
		t.wg.Add(1)
		go func(sd dirChild) {
			defer t.wg.Done()
			childEmptyCh <- t.walk(sd.path, depth+1, homeDev, sd.preferred)
		}(sd)
	}
	allSubdirsEmpty := true
	for range subdirs {
		if !<-childEmptyCh {
			allSubdirsEmpty = false
		}
	}

	for _, f := range files {
		t.stats.scannedFiles.Add(1)
		t.stats.scannedBytes.Add(f.Size)
		if t.passesFilters(f) {
			t.resultCh <- f
			t.stats.matchedFiles.Add(1)
			t.stats.matchedBytes.Add(f.Size)
		}
	}
	t.bar.Describe(t.stats)

	// The scan roots themselves (depth 0) are never reported.
	empty := len(files) == 0 && allSubdirsEmpty
	if empty && depth > 0 {
		t.emit(formatter.KindEmptyDir, dir, 0, 0, 0)
	}
	return empty
}

// listDirectory reads one directory in batches, classifying entries
// into regular files (with lint predicates applied immediately) and
// subdirectories to recurse into. Hidden entries and ignored symlinks
// are dropped here; followed symlinks are resolved into a file or
// subdirectory entry.
func (t *Traverser) listDirectory(dirPath string, preferred bool) (files []*types.FileRecord, subdirs []dirChild, err error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	for {
		entries, err := dir.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && err != io.EOF {
				return files, subdirs, err
			}
			break
		}
		for _, entry := range entries {
			f, sub := t.processEntry(dirPath, entry, preferred)
			if f != nil {
				files = append(files, f)
			}
			if sub != nil {
				subdirs = append(subdirs, *sub)
			}
		}
	}
	return files, subdirs, nil
}

func (t *Traverser) processEntry(dirPath string, entry os.DirEntry, preferred bool) (*types.FileRecord, *dirChild) {
	name := entry.Name()
	if t.cfg.Hidden == config.HiddenSkip && isHidden(name) {
		return nil, nil
	}
	full := filepath.Join(dirPath, name)

	if entry.Type()&os.ModeSymlink != 0 {
		return t.processSymlink(full, preferred)
	}
	if entry.IsDir() {
		return nil, &dirChild{path: full, preferred: preferred}
	}
	if !entry.Type().IsRegular() {
		return nil, nil
	}

	info, err := entry.Info()
	if err != nil {
		t.sendError(err)
		return nil, nil
	}
	return t.fileRecordFor(full, info, preferred), nil
}

// processSymlink always checks for brokenness and additionally
// resolves the link when the symlink policy is "follow". Under
// "ignore" or "treat as file" the link is excluded from the dedup
// pipeline: treating a symlink's own bytes as content would require
// hashing its target string through a separate read path the shredder
// doesn't have, so "treat as file" degrades to "ignore" for now.
func (t *Traverser) processSymlink(full string, preferred bool) (*types.FileRecord, *dirChild) {
	target, err := os.Stat(full)
	if err != nil {
		t.emit(formatter.KindBrokenSymlink, full, 0, 0, 0)
		return nil, nil
	}
	if t.cfg.Symlink != config.SymlinkFollow {
		return nil, nil
	}
	if target.IsDir() {
		return nil, &dirChild{path: full, preferred: preferred}
	}
	if target.Mode().IsRegular() {
		return t.fileRecordFor(full, target, preferred), nil
	}
	return nil, nil
}

// fileRecordFor applies the per-entry lint predicates (empty file, bad
// UID/GID, non-stripped binary) unconditionally, then builds the
// FileRecord that feeds the rest of the pipeline.
func (t *Traverser) fileRecordFor(path string, info os.FileInfo, preferred bool) *types.FileRecord {
	if info.Size() == 0 {
		t.emit(formatter.KindEmptyFile, path, 0, 0, 0)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		uid, gid := statOwner(stat)
		if badUID(uid) {
			t.emit(formatter.KindBadUID, path, info.Size(), uid, 0)
		}
		if badGID(gid) {
			t.emit(formatter.KindBadGID, path, info.Size(), 0, gid)
		}
	}
	if nonStripped(path) {
		t.emit(formatter.KindNonStripped, path, info.Size(), 0, 0)
	}
	return newFileRecord(path, info, preferred)
}

// passesFilters decides whether f is a dedup candidate: it does not
// gate the lint predicates above, which apply to every regular file
// regardless of size or age.
func (t *Traverser) passesFilters(f *types.FileRecord) bool {
	if uint64(f.Size) < t.cfg.Size.Min || uint64(f.Size) > t.cfg.Size.Max {
		return false
	}
	if t.cfg.HasModTimeFilter && f.ModTime.Before(t.cfg.ModTimeFilter) {
		return false
	}
	return true
}

func (t *Traverser) sameDeviceOnly(subdirs []dirChild, homeDev uint64) []dirChild {
	kept := subdirs[:0]
	for _, sd := range subdirs {
		info, err := os.Lstat(sd.path)
		if err != nil {
			t.sendError(err)
			continue
		}
		if deviceOf(info) == homeDev {
			kept = append(kept, sd)
		}
	}
	return kept
}

func (t *Traverser) emit(kind formatter.ItemKind, path string, size int64, uid, gid uint32) {
	if t.findingsCh == nil {
		return
	}
	t.findingsCh <- lintItem(kind, path, size, uid, gid)
}

func (t *Traverser) sendError(err error) {
	if t.errCh != nil {
		t.errCh <- err
	}
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.' && name != "." && name != ".."
}

func deviceOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Dev) //nolint:unconvert // platform-dependent type
	}
	return 0
}
