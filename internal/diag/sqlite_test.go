package diag

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestSQLiteExecutor(t *testing.T) *SQLiteExecutor {
	t.Helper()

	executor, err := NewSQLiteExecutor(filepath.Join(t.TempDir(), "diag.db"))
	if err != nil {
		t.Fatalf("NewSQLiteExecutor() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := executor.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return executor
}

func sessionLookup(id string) Statement {
	return Statement{
		Text:        fmt.Sprintf("SELECT request, duration, coordinator, parameters, started_at FROM sessions WHERE session_id = '%s'", id),
		Consistency: DefaultDiagnosticConsistency,
	}
}

func eventsLookup(id string) Statement {
	return Statement{
		Text:        fmt.Sprintf("SELECT event_id, activity, source, source_elapsed, thread FROM events WHERE session_id = '%s' ORDER BY event_id", id),
		Consistency: DefaultDiagnosticConsistency,
	}
}

func TestSQLiteExecutorRejectsEmptyPath(t *testing.T) {
	if _, err := NewSQLiteExecutor(""); err == nil {
		t.Fatal("NewSQLiteExecutor(\"\") must fail")
	}
}

func TestSQLiteExecutorEmptyLookup(t *testing.T) {
	executor := newTestSQLiteExecutor(t)

	rows, err := executor.Query(context.Background(), sessionLookup("3e7a25d0-61f4-11d9-9669-0800200c9a66"))
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if rows.Len() != 0 {
		t.Fatalf("Query() returned %d rows for an unknown trace, want 0", rows.Len())
	}
}

func TestSQLiteExecutorReadsSeededTrace(t *testing.T) {
	executor := newTestSQLiteExecutor(t)
	const traceID = "3e7a25d0-61f4-11d9-9669-0800200c9a66"

	// Seed a trace mid-write: session row present, duration still null.
	_, err := executor.DB().Exec(
		`INSERT INTO sessions (session_id, request, duration, coordinator, parameters, started_at)
		 VALUES (?, ?, NULL, ?, ?, ?)`,
		traceID, "Execute CQL3 query", "10.0.0.1", `{"query":"SELECT 1"}`, "2026-03-14 09:26:53",
	)
	if err != nil {
		t.Fatalf("seed sessions row: %v", err)
	}
	_, err = executor.DB().Exec(
		`INSERT INTO events (session_id, event_id, activity, source, source_elapsed, thread)
		 VALUES (?, ?, ?, ?, ?, ?), (?, ?, ?, ?, ?, ?)`,
		traceID, "11111111-61f4-11d9-9669-0800200c9a66", "Parsing statement", "10.0.0.1", 10, "Native-Transport-Requests-1",
		traceID, "22222222-61f4-11d9-9669-0800200c9a66", "Read 1 live rows", "10.0.0.2", 81, "ReadStage-2",
	)
	if err != nil {
		t.Fatalf("seed events rows: %v", err)
	}

	ctx := context.Background()
	sessions, err := executor.Query(ctx, sessionLookup(traceID))
	if err != nil {
		t.Fatalf("Query(sessions) failed: %v", err)
	}
	row, ok := sessions.One()
	if !ok {
		t.Fatal("Query(sessions) returned no row")
	}
	if got := row.String("request"); got != "Execute CQL3 query" {
		t.Fatalf("request = %q", got)
	}
	if _, ok := row.Int32("duration"); ok {
		t.Fatal("null duration must scan as absent")
	}
	if got := row.Inet("coordinator"); got == nil || got.String() != "10.0.0.1" {
		t.Fatalf("coordinator = %v", got)
	}
	params, ok := row.StringMap("parameters")
	if !ok || params["query"] != "SELECT 1" {
		t.Fatalf("parameters = (%v, %t)", params, ok)
	}
	if row.Time("started_at").IsZero() {
		t.Fatal("started_at must parse")
	}

	events, err := executor.Query(ctx, eventsLookup(traceID))
	if err != nil {
		t.Fatalf("Query(events) failed: %v", err)
	}
	all := events.All()
	if len(all) != 2 {
		t.Fatalf("Query(events) returned %d rows, want 2", len(all))
	}
	if got := all[0].String("activity"); got != "Parsing statement" {
		t.Fatalf("events[0].activity = %q, want event_id ordering", got)
	}
	if elapsed, ok := all[1].Int32("source_elapsed"); !ok || elapsed != 81 {
		t.Fatalf("events[1].source_elapsed = (%d, %t)", elapsed, ok)
	}

	// The store finishes the trace: the same lookup now reports completeness.
	if _, err := executor.DB().Exec(`UPDATE sessions SET duration = 4321 WHERE session_id = ?`, traceID); err != nil {
		t.Fatalf("finish trace: %v", err)
	}
	sessions, err = executor.Query(ctx, sessionLookup(traceID))
	if err != nil {
		t.Fatalf("Query(sessions) after finish failed: %v", err)
	}
	row, _ = sessions.One()
	if duration, ok := row.Int32("duration"); !ok || duration != 4321 {
		t.Fatalf("duration after finish = (%d, %t), want (4321, true)", duration, ok)
	}
}

func TestSQLiteExecutorClosedQueryFails(t *testing.T) {
	executor, err := NewSQLiteExecutor(filepath.Join(t.TempDir(), "diag.db"))
	if err != nil {
		t.Fatalf("NewSQLiteExecutor() failed: %v", err)
	}
	if err := executor.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	var nilExecutor *SQLiteExecutor
	if _, err := nilExecutor.Query(context.Background(), sessionLookup("x")); err != ErrExecutorClosed {
		t.Fatalf("nil executor Query() error = %v, want ErrExecutorClosed", err)
	}
}
