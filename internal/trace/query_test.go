package trace

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/diag"
)

func TestSessionQuery(t *testing.T) {
	id := uuid.MustParse("3e7a25d0-61f4-11d9-9669-0800200c9a66")
	stmt := SessionQuery(id)

	want := "SELECT request, duration, coordinator, parameters, started_at FROM sessions WHERE session_id = '3e7a25d0-61f4-11d9-9669-0800200c9a66'"
	if stmt.Text != want {
		t.Fatalf("SessionQuery text = %q, want %q", stmt.Text, want)
	}
	if stmt.Consistency != diag.DefaultDiagnosticConsistency {
		t.Fatalf("SessionQuery consistency = %q, want %q", stmt.Consistency, diag.DefaultDiagnosticConsistency)
	}
}

func TestEventsQuery(t *testing.T) {
	id := uuid.MustParse("3e7a25d0-61f4-11d9-9669-0800200c9a66")
	stmt := EventsQuery(id)

	if !strings.Contains(stmt.Text, "FROM events WHERE session_id = '3e7a25d0-61f4-11d9-9669-0800200c9a66'") {
		t.Fatalf("EventsQuery text = %q, want events lookup by session id", stmt.Text)
	}
	if !strings.HasSuffix(stmt.Text, "ORDER BY event_id") {
		t.Fatalf("EventsQuery text = %q, want ORDER BY event_id", stmt.Text)
	}
	if stmt.Consistency != diag.DefaultDiagnosticConsistency {
		t.Fatalf("EventsQuery consistency = %q, want %q", stmt.Consistency, diag.DefaultDiagnosticConsistency)
	}
}
