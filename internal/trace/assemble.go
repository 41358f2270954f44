package trace

import (
	"github.com/tracedive/tracedive/internal/diag"
)

// Assemble builds one immutable snapshot from the raw sessions and events
// row sets of a single fetch attempt.
//
// The summary row may be absent (the store has written events but not the
// session row yet); the snapshot then carries default summary fields and
// whatever events were collected. The duration column is the completeness
// signal: it is the last thing the store writes, so it stays at
// DurationUnknown until present and non-null.
//
// Events keep the store's order. No sorting or deduplication happens here;
// ordering fidelity is the store's responsibility.
func Assemble(sessions, events diag.RowSet) *Snapshot {
	snap := &Snapshot{durationMicros: DurationUnknown}

	if row, ok := sessions.One(); ok {
		snap.requestType = row.String("request")
		if duration, ok := row.Int32("duration"); ok {
			snap.durationMicros = duration
		}
		snap.coordinator = row.Inet("coordinator")
		if params, ok := row.StringMap("parameters"); ok {
			snap.parameters = params
		}
		snap.startedAt = row.Time("started_at")
	}

	rows := events.All()
	if len(rows) > 0 {
		snap.events = make([]Event, 0, len(rows))
		for _, row := range rows {
			elapsed, _ := row.Int32("source_elapsed")
			snap.events = append(snap.events, Event{
				Description:         row.String("activity"),
				Timestamp:           timeOf(row.UUID("event_id")),
				Source:              row.Inet("source"),
				SourceElapsedMicros: elapsed,
				Thread:              row.String("thread"),
			})
		}
	}

	return snap
}
