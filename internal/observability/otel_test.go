package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tracedive/tracedive/internal/config"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantEndpoint string
		wantInsecure bool
		wantErr      bool
	}{
		{name: "bare host port", in: "localhost:4318", wantEndpoint: "localhost:4318"},
		{name: "http url", in: "http://collector:4318", wantEndpoint: "collector:4318", wantInsecure: true},
		{name: "https url", in: "https://collector:4318", wantEndpoint: "collector:4318"},
		{name: "whitespace trimmed", in: "  localhost:4318  ", wantEndpoint: "localhost:4318"},
		{name: "empty", in: "", wantErr: true},
		{name: "unsupported scheme", in: "grpc://collector:4317", wantErr: true},
		{name: "missing host", in: "http://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint, insecure, err := normalizeOTLPEndpoint(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeOTLPEndpoint(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeOTLPEndpoint(%q) failed: %v", tt.in, err)
			}
			if endpoint != tt.wantEndpoint || insecure != tt.wantInsecure {
				t.Fatalf("normalizeOTLPEndpoint(%q) = (%q, %t), want (%q, %t)", tt.in, endpoint, insecure, tt.wantEndpoint, tt.wantInsecure)
			}
		})
	}
}

func TestServerSpanName(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{method: "GET", path: "/api/traces/3e7a25d0-61f4-11d9-9669-0800200c9a66", want: "GET /api/traces/*"},
		{method: "GET", path: "/api/health", want: "GET /api/health"},
		{method: "POST", path: "/anything", want: "POST /other"},
		{method: "", path: "/", want: "UNKNOWN /other"},
	}
	for _, tt := range tests {
		if got := serverSpanName(tt.method, tt.path); got != tt.want {
			t.Fatalf("serverSpanName(%q, %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestSetupDisabled(t *testing.T) {
	runtime, err := Setup(context.Background(), config.OTelConfig{Enabled: false}, "test", nil)
	if err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if runtime.Enabled() {
		t.Fatal("disabled config must produce a disabled runtime")
	}

	// Disabled runtime hooks are no-ops, not panics.
	runtime.RecordFetchAttempt(true, false)
	if err := runtime.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
}

func TestDisabledRuntimePassesHandlerThrough(t *testing.T) {
	runtime := &Runtime{}

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := runtime.WrapHTTPHandler(inner)

	recorder := httptest.NewRecorder()
	wrapped.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want the inner handler's response", recorder.Code)
	}

	var nilRuntime *Runtime
	if nilRuntime.Enabled() {
		t.Fatal("nil runtime must report disabled")
	}
	if nilRuntime.WrapHTTPHandler(nil) == nil {
		t.Fatal("nil runtime must still return a usable handler")
	}
}
