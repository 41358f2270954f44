package trace

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/diag"
)

// Metrics holds optional callbacks the handle invokes per fetch attempt.
type Metrics struct {
	// OnFetch is called after each fetch attempt with the attempt's outcome.
	OnFetch func(traceID uuid.UUID, complete bool, err error)
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger fetch failures are recorded on.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxAttempts bounds how many fetch attempts accessors may trigger while
// the trace is incomplete. Zero keeps the default behavior: every access
// re-fetches until the store finishes writing. Explicit Fetch calls are
// never bounded.
func WithMaxAttempts(n int) Option {
	return func(h *Handle) {
		if n > 0 {
			h.maxAttempts = n
		}
	}
}

// WithMetrics sets the fetch metric callbacks.
func WithMetrics(m Metrics) Option {
	return func(h *Handle) {
		h.metrics = m
	}
}

// Handle is the externally visible trace entity: an identifier plus the
// latest published snapshot, fetched lazily on first access.
//
// The published snapshot is the only shared mutable state. It is replaced,
// never edited: each fetch attempt builds a complete new snapshot and
// publishes it with a single atomic pointer swap, so no reader ever observes
// fields from two different attempts. Once a snapshot with a known duration
// is published the handle is frozen and accessors stop fetching.
type Handle struct {
	id     uuid.UUID
	exec   diag.Executor
	logger *slog.Logger

	metrics     Metrics
	maxAttempts int

	// fetchMu serializes fetch attempts; at most one is in flight per handle.
	fetchMu  sync.Mutex
	snap     atomic.Pointer[Snapshot]
	attempts atomic.Int64
}

// NewHandle binds a handle to a trace identifier and a query executor. No
// fetch happens until an accessor is called.
func NewHandle(id uuid.UUID, exec diag.Executor, opts ...Option) *Handle {
	h := &Handle{
		id:     id,
		exec:   exec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TraceID returns the identifier of this trace. Never fetches.
func (h *Handle) TraceID() uuid.UUID {
	return h.id
}

// Snapshot returns the currently published snapshot, or nil when nothing has
// been fetched yet. Never fetches.
func (h *Handle) Snapshot() *Snapshot {
	return h.snap.Load()
}

// State reports what the handle has published so far. Never fetches.
func (h *Handle) State() State {
	snap := h.snap.Load()
	switch {
	case snap == nil:
		return StateUnfetched
	case snap.Complete():
		return StateComplete
	default:
		return StateIncomplete
	}
}

// Attempts returns how many fetch attempts have run for this handle.
func (h *Handle) Attempts() int64 {
	return h.attempts.Load()
}

// RequestType returns the type of the traced request, or "" if not yet
// available.
func (h *Handle) RequestType(ctx context.Context) string {
	h.ensure(ctx)
	return h.snap.Load().RequestType()
}

// DurationMicros returns the server-side duration of the traced query in
// microseconds, or DurationUnknown if not yet available.
func (h *Handle) DurationMicros(ctx context.Context) int32 {
	h.ensure(ctx)
	return h.snap.Load().DurationMicros()
}

// Coordinator returns the address of the node that coordinated the traced
// query, or nil if not yet available.
func (h *Handle) Coordinator(ctx context.Context) net.IP {
	h.ensure(ctx)
	return h.snap.Load().Coordinator()
}

// Parameters returns the parameters attached to the trace, or nil if not yet
// available.
func (h *Handle) Parameters(ctx context.Context) map[string]string {
	h.ensure(ctx)
	return h.snap.Load().Parameters()
}

// StartedAt returns the server-side start time of the traced query, or the
// zero time if not yet available.
func (h *Handle) StartedAt(ctx context.Context) time.Time {
	h.ensure(ctx)
	return h.snap.Load().StartedAt()
}

// Events returns the trace's timeline in the order the store returned it.
func (h *Handle) Events(ctx context.Context) []Event {
	h.ensure(ctx)
	return h.snap.Load().Events()
}

// Summary returns a one-line human-readable description of the trace.
func (h *Handle) Summary(ctx context.Context) string {
	h.ensure(ctx)
	snap := h.snap.Load()
	return fmt.Sprintf("%s [%s] - %dµs", snap.RequestType(), h.id, snap.DurationMicros())
}

// Fetch performs one serialized fetch attempt unless the handle is already
// frozen, and reports the resulting state. Unlike the accessors it returns
// the fetch failure, letting callers distinguish "still being written" from
// "read failed"; on failure the previously published snapshot is untouched.
func (h *Handle) Fetch(ctx context.Context) (State, error) {
	h.fetchMu.Lock()
	defer h.fetchMu.Unlock()

	if snap := h.snap.Load(); snap != nil && snap.Complete() {
		return StateComplete, nil
	}
	if err := h.fetchLocked(ctx); err != nil {
		return h.State(), err
	}
	return h.State(), nil
}

// ensure is the accessor-path fetch protocol: a lock-free fast path when the
// handle is frozen, then one serialized, double-checked fetch attempt.
// Failures are logged and swallowed so accessors observe the prior published
// state; while the trace stays incomplete every access re-fetches, which is
// the intended poll-until-written behavior (bounded only when the handle was
// built with WithMaxAttempts).
func (h *Handle) ensure(ctx context.Context) {
	if snap := h.snap.Load(); snap != nil && snap.Complete() {
		return
	}

	h.fetchMu.Lock()
	defer h.fetchMu.Unlock()

	// Another caller may have completed the fetch while we waited.
	if snap := h.snap.Load(); snap != nil && snap.Complete() {
		return
	}
	if h.maxAttempts > 0 && h.attempts.Load() >= int64(h.maxAttempts) {
		return
	}

	if err := h.fetchLocked(ctx); err != nil {
		h.logger.Warn("trace fetch failed",
			"trace_id", h.id,
			"attempt", h.attempts.Load(),
			"error", err,
		)
	}
}

// fetchLocked runs one fetch attempt and publishes its snapshot, complete or
// not. Callers hold fetchMu. On error nothing is published.
func (h *Handle) fetchLocked(ctx context.Context) error {
	h.attempts.Add(1)

	snap, err := h.fetchOnce(ctx)
	if h.metrics.OnFetch != nil {
		h.metrics.OnFetch(h.id, snap.Complete(), err)
	}
	if err != nil {
		return &FetchError{TraceID: h.id, Err: err}
	}

	h.snap.Store(snap)
	return nil
}

// fetchOnce issues the two diagnostic reads concurrently, waits for both,
// and assembles the result. The reads are independent; assembly only needs
// both row sets present.
func (h *Handle) fetchOnce(ctx context.Context) (*Snapshot, error) {
	type sessionResult struct {
		rows diag.RowSet
		err  error
	}

	sessionCh := make(chan sessionResult, 1)
	go func() {
		rows, err := h.exec.Query(ctx, SessionQuery(h.id))
		sessionCh <- sessionResult{rows: rows, err: err}
	}()

	eventRows, eventsErr := h.exec.Query(ctx, EventsQuery(h.id))
	session := <-sessionCh

	if session.err != nil {
		return nil, fmt.Errorf("read sessions row: %w", session.err)
	}
	if eventsErr != nil {
		return nil, fmt.Errorf("read events rows: %w", eventsErr)
	}

	return Assemble(session.rows, eventRows), nil
}
