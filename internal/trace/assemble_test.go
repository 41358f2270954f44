package trace

import (
	"testing"
	"time"

	"github.com/tracedive/tracedive/internal/diag"
)

func sessionRow(columns map[string]any) diag.RowSet {
	return diag.NewRowSet(diag.NewRow(columns))
}

func TestAssembleAbsentSessionRow(t *testing.T) {
	snap := Assemble(diag.NewRowSet(), diag.NewRowSet())

	if snap.Complete() {
		t.Fatal("snapshot with no session row must not be complete")
	}
	if got := snap.DurationMicros(); got != DurationUnknown {
		t.Fatalf("DurationMicros() = %d, want DurationUnknown", got)
	}
	if got := snap.RequestType(); got != "" {
		t.Fatalf("RequestType() = %q, want empty", got)
	}
	if snap.Coordinator() != nil {
		t.Fatal("Coordinator() must be nil for an absent session row")
	}
	if snap.Parameters() != nil {
		t.Fatal("Parameters() must be nil for an absent session row")
	}
	if !snap.StartedAt().IsZero() {
		t.Fatal("StartedAt() must be zero for an absent session row")
	}
}

func TestAssembleNullDurationIsIncomplete(t *testing.T) {
	sessions := sessionRow(map[string]any{
		"request":     "Execute CQL3 query",
		"duration":    nil,
		"coordinator": "10.0.0.1",
	})

	snap := Assemble(sessions, diag.NewRowSet())

	if snap.Complete() {
		t.Fatal("snapshot with null duration must not be complete")
	}
	if got := snap.DurationMicros(); got != DurationUnknown {
		t.Fatalf("DurationMicros() = %d, want DurationUnknown", got)
	}
	if got := snap.RequestType(); got != "Execute CQL3 query" {
		t.Fatalf("RequestType() = %q, want the partially written value", got)
	}
}

func TestAssembleCompleteSession(t *testing.T) {
	startedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	sessions := sessionRow(map[string]any{
		"request":     "Execute CQL3 query",
		"duration":    int64(4321),
		"coordinator": "10.0.0.1",
		"parameters":  `{"query":"SELECT * FROM t","page_size":"5000"}`,
		"started_at":  startedAt,
	})

	snap := Assemble(sessions, diag.NewRowSet())

	if !snap.Complete() {
		t.Fatal("snapshot with non-null duration must be complete")
	}
	if got := snap.DurationMicros(); got != 4321 {
		t.Fatalf("DurationMicros() = %d, want 4321", got)
	}
	if got := snap.Coordinator(); got == nil || got.String() != "10.0.0.1" {
		t.Fatalf("Coordinator() = %v, want 10.0.0.1", got)
	}
	params := snap.Parameters()
	if params["query"] != "SELECT * FROM t" || params["page_size"] != "5000" {
		t.Fatalf("Parameters() = %v, want decoded mapping", params)
	}
	if got := snap.StartedAt(); !got.Equal(startedAt) {
		t.Fatalf("StartedAt() = %s, want %s", got, startedAt)
	}
}

func TestAssembleZeroDurationIsComplete(t *testing.T) {
	snap := Assemble(sessionRow(map[string]any{"duration": int64(0)}), diag.NewRowSet())

	if !snap.Complete() {
		t.Fatal("a written zero duration means the store finished the trace")
	}
	if got := snap.DurationMicros(); got != 0 {
		t.Fatalf("DurationMicros() = %d, want 0", got)
	}
}

func TestAssemblePreservesEventOrder(t *testing.T) {
	id1 := timeUUIDAt(t, gregorianToUnixOffset+30000)
	id2 := timeUUIDAt(t, gregorianToUnixOffset+10000)
	id3 := timeUUIDAt(t, gregorianToUnixOffset+20000)

	events := diag.NewRowSet(
		diag.NewRow(map[string]any{"event_id": id1.String(), "activity": "Parsing statement", "source": "10.0.0.1", "source_elapsed": int64(10), "thread": "Native-Transport-Requests-1"}),
		diag.NewRow(map[string]any{"event_id": id2.String(), "activity": "Preparing statement", "source": "10.0.0.2", "source_elapsed": int64(25), "thread": "ReadStage-2"}),
		diag.NewRow(map[string]any{"event_id": id3.String(), "activity": "Read 1 live rows", "source": "10.0.0.2", "source_elapsed": int64(81), "thread": "ReadStage-2"}),
	)

	snap := Assemble(diag.NewRowSet(), events)

	got := snap.Events()
	if len(got) != 3 {
		t.Fatalf("len(Events()) = %d, want 3", len(got))
	}
	// Rows arrive in store order and must stay that way, even when the
	// embedded event timestamps disagree with it.
	wantActivities := []string{"Parsing statement", "Preparing statement", "Read 1 live rows"}
	for i, want := range wantActivities {
		if got[i].Description != want {
			t.Fatalf("Events()[%d].Description = %q, want %q", i, got[i].Description, want)
		}
	}
	if !got[0].Timestamp.Equal(time.UnixMilli(3).UTC()) {
		t.Fatalf("Events()[0].Timestamp = %s, want %s", got[0].Timestamp, time.UnixMilli(3).UTC())
	}
	if got[1].SourceElapsedMicros != 25 {
		t.Fatalf("Events()[1].SourceElapsedMicros = %d, want 25", got[1].SourceElapsedMicros)
	}
	if got[2].Source.String() != "10.0.0.2" {
		t.Fatalf("Events()[2].Source = %v, want 10.0.0.2", got[2].Source)
	}
}

func TestSnapshotAccessorsReturnCopies(t *testing.T) {
	sessions := sessionRow(map[string]any{
		"duration":   int64(100),
		"parameters": `{"query":"SELECT 1"}`,
	})
	events := diag.NewRowSet(
		diag.NewRow(map[string]any{"activity": "original"}),
	)
	snap := Assemble(sessions, events)

	params := snap.Parameters()
	params["query"] = "mutated"
	if snap.Parameters()["query"] != "SELECT 1" {
		t.Fatal("mutating the returned parameters map leaked into the snapshot")
	}

	eventsCopy := snap.Events()
	eventsCopy[0].Description = "mutated"
	if snap.Events()[0].Description != "original" {
		t.Fatal("mutating the returned events slice leaked into the snapshot")
	}
}

func TestNilSnapshotAccessors(t *testing.T) {
	var snap *Snapshot

	if snap.Complete() {
		t.Fatal("nil snapshot must not be complete")
	}
	if got := snap.DurationMicros(); got != DurationUnknown {
		t.Fatalf("DurationMicros() = %d, want DurationUnknown", got)
	}
	if snap.RequestType() != "" || snap.Coordinator() != nil || snap.Parameters() != nil || snap.Events() != nil {
		t.Fatal("nil snapshot accessors must return zero values")
	}
	if !snap.StartedAt().IsZero() {
		t.Fatal("nil snapshot StartedAt() must be zero")
	}
}
