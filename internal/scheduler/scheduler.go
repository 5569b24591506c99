// Package scheduler issues file reads per physical device: one
// DeviceScheduler per device, each owning a bounded worker pool and a
// priority queue of read requests ordered by physical extent offset
// where the filesystem exposes one (the FIEMAP ioctl), falling back to
// (inode, path) ordering otherwise.
//
// Interleaving reads across thousands of candidate files collapses
// throughput on rotating disks; serving them in extent order turns the
// workload into a near-sequential scan.
package scheduler

import (
	"container/heap"
	"io"
	"os"
	"sync"

	"github.com/ivoronin/lint/internal/types"
)

// defaultReorderWindow bounds how many times an older request may be
// passed over in favor of lower-offset ones before it is forced to the
// front of the queue regardless of offset.
const defaultReorderWindow = 64

type request struct {
	rec      *types.FileRecord
	offset   int64
	length   int64
	physical int64
	known    bool // physical offset came from FIEMAP, not a fallback
	seq      uint64
	resultCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// requestHeap orders requests by physical offset ascending, falling
// back to (inode, path, seq) when the physical offset could not be
// determined -- an approximation of on-disk layout that still groups a
// file's own reads together and gives a deterministic order across
// runs.
type requestHeap []*request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.known && b.known {
		if a.physical != b.physical {
			return a.physical < b.physical
		}
		return a.seq < b.seq
	}
	if a.known != b.known {
		// Known offsets sort before unknown ones: a scheduler mixing
		// FIEMAP-capable and incapable filesystems still makes forward
		// progress on the files it can order.
		return a.known
	}
	if a.rec.Ino != b.rec.Ino {
		return a.rec.Ino < b.rec.Ino
	}
	if a.rec.Path != b.rec.Path {
		return a.rec.Path < b.rec.Path
	}
	return a.seq < b.seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(*request)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// DeviceScheduler issues reads for one physical device in an order
// that minimizes seeks: requests are served in ascending
// physical-offset order, except that a request is never passed over
// more than reorderWindow times running.
type DeviceScheduler struct {
	dev           uint64
	reorderWindow int
	workers       int

	mu         sync.Mutex
	cond       *sync.Cond
	queue      requestHeap
	nextSeq    uint64
	passedOver map[uint64]int
	closed     bool
	started    bool
	wg         sync.WaitGroup
}

// New creates a DeviceScheduler for the given device id with a worker
// pool of the given size (workers <= 0 behaves as 1).
func New(dev uint64, workers int) *DeviceScheduler {
	if workers <= 0 {
		workers = 1
	}
	s := &DeviceScheduler{
		dev:           dev,
		reorderWindow: defaultReorderWindow,
		workers:       workers,
		passedOver:    make(map[uint64]int),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the scheduler's worker pool. Idempotent; Submit starts
// the pool itself on first use, so callers rarely need this directly.
func (s *DeviceScheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop signals the scheduler to drain and exit once the queue empties,
// and waits for its worker pool to exit.
func (s *DeviceScheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit enqueues a read of [offset, offset+length) from rec and blocks
// until the bytes are available or an I/O error occurs.
func (s *DeviceScheduler) Submit(rec *types.FileRecord, offset, length int64) ([]byte, error) {
	physical, known := physicalOffset(rec.Path, offset)
	req := &request{
		rec:      rec,
		offset:   offset,
		length:   length,
		physical: physical,
		known:    known,
		resultCh: make(chan readResult, 1),
	}

	s.Start()

	s.mu.Lock()
	req.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, req)
	s.cond.Signal()
	s.mu.Unlock()

	res := <-req.resultCh
	return res.data, res.err
}

func (s *DeviceScheduler) worker() {
	defer s.wg.Done()
	for {
		req, ok := s.dequeue()
		if !ok {
			return
		}
		data, err := readRange(req.rec.Path, req.offset, req.length)
		req.resultCh <- readResult{data: data, err: err}
	}
}

// dequeue blocks until a request is available or the scheduler has been
// stopped with an empty queue. It applies the starvation override
// before falling back to ordinary offset ordering.
func (s *DeviceScheduler) dequeue() (*request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.queue.Len() == 0 {
		if s.closed {
			return nil, false
		}
		s.cond.Wait()
	}

	if idx := s.starvedIndex(); idx >= 0 {
		item := s.queue[idx]
		s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
		heap.Init(&s.queue)
		delete(s.passedOver, item.seq)
		return item, true
	}

	item := heap.Pop(&s.queue).(*request)
	for _, other := range s.queue {
		s.passedOver[other.seq]++
	}
	delete(s.passedOver, item.seq)
	return item, true
}

// starvedIndex returns the queue index of a request passed over at
// least reorderWindow times, or -1 if none has been.
func (s *DeviceScheduler) starvedIndex() int {
	for i, r := range s.queue {
		if s.passedOver[r.seq] >= s.reorderWindow {
			return i
		}
	}
	return -1
}

// readRange reads exactly [start, start+size) from path, tolerating a
// short final read at EOF.
func readRange(path string, start, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
