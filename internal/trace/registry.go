package trace

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/diag"
)

// Registry caches one Handle per trace identifier so repeated lookups of the
// same trace reuse its memoized snapshot: once a trace completes it is never
// fetched again for the life of the process.
type Registry struct {
	exec diag.Executor
	opts []Option

	mu      sync.Mutex
	handles map[uuid.UUID]*Handle
}

// NewRegistry creates a registry whose handles share the given executor and
// options.
func NewRegistry(exec diag.Executor, opts ...Option) *Registry {
	return &Registry{
		exec:    exec,
		opts:    opts,
		handles: make(map[uuid.UUID]*Handle),
	}
}

// Handle returns the cached handle for the identifier, creating it on first
// use. Concurrent callers for the same identifier get the same handle.
func (r *Registry) Handle(id uuid.UUID) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[id]; ok {
		return h
	}
	h := NewHandle(id, r.exec, r.opts...)
	r.handles[id] = h
	return h
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
