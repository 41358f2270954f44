package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestTraceLogHandlerWithoutActiveSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceLogHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "hello", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if record["msg"] != "hello" || record["key"] != "value" {
		t.Fatalf("record = %v", record)
	}
	if _, present := record["trace_id"]; present {
		t.Fatal("trace_id must be absent without an active span")
	}
	if _, present := record["span_id"]; present {
		t.Fatal("span_id must be absent without an active span")
	}
}

func TestTraceLogHandlerPreservesAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := NewTraceLogHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler).With("component", "fetch").WithGroup("detail")

	logger.Info("grouped", "attempt", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if record["component"] != "fetch" {
		t.Fatalf("component = %v, want fetch", record["component"])
	}
	detail, ok := record["detail"].(map[string]any)
	if !ok || detail["attempt"] != float64(2) {
		t.Fatalf("detail group = %v", record["detail"])
	}
}

func TestNewTraceLogHandlerNilInner(t *testing.T) {
	if NewTraceLogHandler(nil) == nil {
		t.Fatal("NewTraceLogHandler(nil) must fall back to the default handler")
	}
}
