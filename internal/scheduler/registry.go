package scheduler

import "sync"

// Registry hands out one DeviceScheduler per device id, creating it
// lazily on first use. Owned by the session for the pipeline's
// lifetime.
type Registry struct {
	mu              sync.Mutex
	schedulers      map[uint64]*DeviceScheduler
	workersPerDevice int
}

// NewRegistry creates a Registry that gives each DeviceScheduler a
// worker pool of workersPerDevice goroutines.
func NewRegistry(workersPerDevice int) *Registry {
	return &Registry{
		schedulers:       make(map[uint64]*DeviceScheduler),
		workersPerDevice: workersPerDevice,
	}
}

// For returns the DeviceScheduler for dev, creating it if this is the
// first request for that device.
func (r *Registry) For(dev uint64) *DeviceScheduler {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedulers[dev]
	if !ok {
		s = New(dev, r.workersPerDevice)
		r.schedulers[dev] = s
	}
	return s
}

// StopAll stops every scheduler created so far and waits for their
// worker pools to drain.
func (r *Registry) StopAll() {
	r.mu.Lock()
	schedulers := make([]*DeviceScheduler, 0, len(r.schedulers))
	for _, s := range r.schedulers {
		schedulers = append(schedulers, s)
	}
	r.mu.Unlock()

	for _, s := range schedulers {
		s.Stop()
	}
}
