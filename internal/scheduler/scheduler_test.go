package scheduler

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ivoronin/lint/internal/types"
)

func writeTempFile(t *testing.T, content string) *types.FileRecord {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &types.FileRecord{Path: path, Size: int64(len(content))}
}

func TestSubmitReturnsRequestedRange(t *testing.T) {
	rec := writeTempFile(t, "hello world")
	s := New(1, 2)
	defer s.Stop()

	data, err := s.Submit(rec, 6, 5)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("Submit() = %q, want %q", data, "world")
	}
}

func TestSubmitConcurrentRequestsAllComplete(t *testing.T) {
	rec := writeTempFile(t, "0123456789")
	s := New(1, 4)
	defer s.Stop()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Submit(rec, int64(n), 1)
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSubmitMissingFileReturnsError(t *testing.T) {
	rec := &types.FileRecord{Path: "/nonexistent/path/does/not/exist", Size: 10}
	s := New(1, 1)
	defer s.Stop()

	if _, err := s.Submit(rec, 0, 1); err == nil {
		t.Errorf("expected error reading nonexistent file")
	}
}

func TestRequestHeapOrdersByPhysicalThenFallback(t *testing.T) {
	h := requestHeap{
		{seq: 0, known: true, physical: 300},
		{seq: 1, known: true, physical: 100},
		{seq: 2, known: false, rec: &types.FileRecord{Ino: 5, Path: "b"}},
		{seq: 3, known: false, rec: &types.FileRecord{Ino: 2, Path: "a"}},
	}
	if !h.Less(1, 0) {
		t.Errorf("expected lower physical offset to sort first")
	}
	if !h.Less(0, 2) {
		t.Errorf("expected known offsets to sort before unknown ones")
	}
	if !h.Less(3, 2) {
		t.Errorf("expected lower inode to sort first among unknown offsets")
	}
}

func TestRegistryReusesSchedulerPerDevice(t *testing.T) {
	r := NewRegistry(1)
	a := r.For(1)
	b := r.For(1)
	c := r.For(2)
	if a != b {
		t.Errorf("expected same scheduler instance for same device id")
	}
	if a == c {
		t.Errorf("expected distinct scheduler instances for distinct device ids")
	}
	r.StopAll()
}

func TestFiemapFallbackOnNonLinuxOrUnsupportedPath(t *testing.T) {
	_, ok := physicalOffset("/this/path/need/not/exist", 0)
	_ = ok // platform-dependent; only assert it doesn't panic
}
