// Package trace retrieves and assembles the diagnostic trace a distributed
// data store records for an executed query. The store writes the trace
// asynchronously into its sessions and events tables, so a trace read soon
// after the query may be incomplete; Handle re-fetches on access until the
// store has finished writing.
package trace

import (
	"fmt"
	"math"
	"net"
	"time"

	"github.com/google/uuid"
)

// DurationUnknown is the sentinel DurationMicros returns while the store has
// not yet written the trace's duration. The duration is the last field the
// store writes, so its presence is the completeness signal.
const DurationUnknown int32 = math.MinInt32

// State describes what a handle has published so far.
type State int

const (
	StateUnfetched State = iota
	StateIncomplete
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateUnfetched:
		return "unfetched"
	case StateIncomplete:
		return "incomplete"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is one timeline entry of a trace: an activity that happened on some
// node while the query executed.
type Event struct {
	Description         string
	Timestamp           time.Time
	Source              net.IP
	SourceElapsedMicros int32
	Thread              string
}

func (e Event) String() string {
	return fmt.Sprintf("%s on %s[%s] at %s", e.Description, e.Source, e.Thread, e.Timestamp.Format(time.RFC3339Nano))
}

// Snapshot is one assembled view of a trace. A snapshot is immutable once
// built: all fields come from a single fetch attempt, and the accessors for
// the map and slice fields return copies.
type Snapshot struct {
	requestType    string
	durationMicros int32
	coordinator    net.IP
	parameters     map[string]string
	startedAt      time.Time
	events         []Event
}

// Complete reports whether the store had finished writing the trace when
// this snapshot was fetched.
func (s *Snapshot) Complete() bool {
	return s != nil && s.durationMicros != DurationUnknown
}

// RequestType returns the type of the traced request, or "" if not yet known.
func (s *Snapshot) RequestType() string {
	if s == nil {
		return ""
	}
	return s.requestType
}

// DurationMicros returns the server-side duration of the traced query in
// microseconds, or DurationUnknown while the trace is still being written.
func (s *Snapshot) DurationMicros() int32 {
	if s == nil {
		return DurationUnknown
	}
	return s.durationMicros
}

// Coordinator returns the address of the node that coordinated the traced
// query, or nil if not yet known.
func (s *Snapshot) Coordinator() net.IP {
	if s == nil {
		return nil
	}
	return s.coordinator
}

// Parameters returns a copy of the parameters attached to the trace, or nil
// if not yet known.
func (s *Snapshot) Parameters() map[string]string {
	if s == nil || s.parameters == nil {
		return nil
	}
	params := make(map[string]string, len(s.parameters))
	for k, v := range s.parameters {
		params[k] = v
	}
	return params
}

// StartedAt returns the server-side start time of the traced query, or the
// zero time if not yet known.
func (s *Snapshot) StartedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.startedAt
}

// Events returns a copy of the trace's timeline in the order the store
// returned it.
func (s *Snapshot) Events() []Event {
	if s == nil || len(s.events) == 0 {
		return nil
	}
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}

// FetchError wraps any failure from the query executor during a trace fetch:
// network errors, decode errors, and timeouts the executor surfaces all look
// the same to the retry protocol.
type FetchError struct {
	TraceID uuid.UUID
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch trace %s: %v", e.TraceID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
