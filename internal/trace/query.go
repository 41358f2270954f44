package trace

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/diag"
)

// The store writes each trace into two fixed diagnostic tables: a single
// summary row in sessions and the timeline in events. Both are looked up by
// equality on the trace identifier, at the store-wide diagnostic consistency
// level rather than the traced query's own level. The events statement
// orders by the time-based event id, matching the clustering order a
// cluster-native store returns.
const (
	selectSessionFormat = "SELECT request, duration, coordinator, parameters, started_at FROM sessions WHERE session_id = '%s'"
	selectEventsFormat  = "SELECT event_id, activity, source, source_elapsed, thread FROM events WHERE session_id = '%s' ORDER BY event_id"
)

// SessionQuery returns the lookup statement for a trace's summary row.
func SessionQuery(id uuid.UUID) diag.Statement {
	return diag.Statement{
		Text:        fmt.Sprintf(selectSessionFormat, id),
		Consistency: diag.DefaultDiagnosticConsistency,
	}
}

// EventsQuery returns the lookup statement for a trace's timeline rows.
func EventsQuery(id uuid.UUID) diag.Statement {
	return diag.Statement{
		Text:        fmt.Sprintf(selectEventsFormat, id),
		Consistency: diag.DefaultDiagnosticConsistency,
	}
}
