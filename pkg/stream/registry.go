package stream

import (
	"context"
	"sort"
	"sync"
)

// Registry keeps at most one live handle per job.
type Registry struct {
	opts Options

	mu      sync.Mutex
	handles map[int]*Handle
}

// NewRegistry creates a registry whose handles share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:    opts,
		handles: make(map[int]*Handle),
	}
}

// Watch returns the live handle for jobID, opening one if there is none or
// the previous one has closed.
func (r *Registry) Watch(ctx context.Context, jobID int) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[jobID]; ok {
		select {
		case <-h.Done():
		default:
			if h.State() != StateClosed {
				return h
			}
		}
	}
	h := Open(ctx, jobID, r.opts)
	r.handles[jobID] = h
	return h
}

// Get returns the handle last opened for jobID, live or not.
func (r *Registry) Get(jobID int) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[jobID]
	return h, ok
}

// Jobs lists the job ids with a handle, ascending.
func (r *Registry) Jobs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Close closes and forgets the handle for jobID.
func (r *Registry) Close(jobID int) {
	r.mu.Lock()
	h, ok := r.handles[jobID]
	delete(r.handles, jobID)
	r.mu.Unlock()
	if ok {
		h.Close()
	}
}

// CloseAll closes every handle.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[int]*Handle)
	r.mu.Unlock()
	for _, h := range handles {
		h.Close()
	}
}

// Wait blocks until every handle has closed or ctx ends.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
