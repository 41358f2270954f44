package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tracedive/tracedive/internal/trace"
)

type traceResponse struct {
	TraceID        string            `json:"trace_id"`
	State          string            `json:"state"`
	Complete       bool              `json:"complete"`
	RequestType    string            `json:"request_type,omitempty"`
	DurationMicros *int32            `json:"duration_micros,omitempty"`
	Coordinator    string            `json:"coordinator,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	Events         []eventResponse   `json:"events"`
}

type eventResponse struct {
	Activity            string    `json:"activity"`
	Timestamp           time.Time `json:"timestamp"`
	Source              string    `json:"source,omitempty"`
	SourceElapsedMicros int32     `json:"source_elapsed_micros"`
	Thread              string    `json:"thread,omitempty"`
}

// TraceDetailHandler serves GET /api/traces/{id}. Each request performs one
// explicit fetch attempt through the handle (a no-op once the trace is
// complete) and renders whatever snapshot is published. A trace the store is
// still writing returns 200 with complete=false; a fetch failure with no
// previously published snapshot returns 502 so callers can tell "not yet
// written" from "read failed".
func TraceDetailHandler(registry *trace.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		if registry == nil {
			writeError(w, http.StatusServiceUnavailable, "trace registry is not configured")
			return
		}

		id, ok := parseTraceID(r.URL.Path)
		if !ok {
			writeError(w, http.StatusBadRequest, "trace id must be a uuid")
			return
		}

		handle := registry.Handle(id)
		state, err := handle.Fetch(r.Context())
		if err != nil {
			if logger != nil {
				logger.Warn("trace fetch failed", "trace_id", id, "error", err)
			}
			if state == trace.StateUnfetched {
				writeError(w, http.StatusBadGateway, "failed to read trace from the diagnostic tables")
				return
			}
			// Keep serving the previously published snapshot.
		}

		writeJSON(w, http.StatusOK, detailTrace(handle))
	})
}

func parseTraceID(path string) (uuid.UUID, bool) {
	const prefix = "/api/traces/"
	if !strings.HasPrefix(path, prefix) {
		return uuid.Nil, false
	}
	raw := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if raw == "" || strings.Contains(raw, "/") {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func detailTrace(handle *trace.Handle) traceResponse {
	snap := handle.Snapshot()
	state := handle.State()

	response := traceResponse{
		TraceID:  handle.TraceID().String(),
		State:    state.String(),
		Complete: state == trace.StateComplete,
		Events:   []eventResponse{},
	}
	if snap == nil {
		return response
	}

	response.RequestType = snap.RequestType()
	if snap.Complete() {
		duration := snap.DurationMicros()
		response.DurationMicros = &duration
	}
	if coordinator := snap.Coordinator(); coordinator != nil {
		response.Coordinator = coordinator.String()
	}
	response.Parameters = snap.Parameters()
	if startedAt := snap.StartedAt(); !startedAt.IsZero() {
		utc := startedAt.UTC()
		response.StartedAt = &utc
	}
	for _, event := range snap.Events() {
		item := eventResponse{
			Activity:            event.Description,
			Timestamp:           event.Timestamp,
			SourceElapsedMicros: event.SourceElapsedMicros,
			Thread:              event.Thread,
		}
		if event.Source != nil {
			item.Source = event.Source.String()
		}
		response.Events = append(response.Events, item)
	}

	return response
}
