package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tphummel/pcbuild/internal/middleware"
)

// logRequest sends one request through RequestLogger and returns the raw log
// output.
func logRequest(t *testing.T, skip func(*http.Request) bool, next http.HandlerFunc, req *http.Request) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	middleware.RequestLogger(logger, skip, next).ServeHTTP(httptest.NewRecorder(), req)
	return &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	return entry
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }
}

func TestRequestLogger_LogsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/components?category=cpu&page=2", nil)
	entry := decodeEntry(t, logRequest(t, nil, status(http.StatusOK), req))

	for _, key := range []string{"method", "path", "query", "status", "duration", "remote_addr"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("log entry missing key %q", key)
		}
	}
	if entry["method"] != http.MethodGet {
		t.Errorf("method: got %v", entry["method"])
	}
	if entry["path"] != "/api/v1/components" {
		t.Errorf("path: got %v", entry["path"])
	}
	if entry["query"] != "category=cpu&page=2" {
		t.Errorf("query: got %v", entry["query"])
	}
}

func TestRequestLogger_Status(t *testing.T) {
	tests := []struct {
		name      string
		next      http.HandlerFunc
		want      float64
		wantLevel string
	}{
		{"ok", status(http.StatusOK), 200, "INFO"},
		{"created", status(http.StatusCreated), 201, "INFO"},
		{"implicit 200 on write", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("hello")) }, 200, "INFO"},
		{"not found", status(http.StatusNotFound), 404, "WARN"},
		{"bad request", status(http.StatusBadRequest), 400, "WARN"},
		{"server error", status(http.StatusInternalServerError), 500, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/compatibility/check", nil)
			entry := decodeEntry(t, logRequest(t, nil, tt.next, req))
			if entry["status"] != tt.want {
				t.Errorf("status: got %v, want %v", entry["status"], tt.want)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level: got %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}

func TestRequestLogger_Skip(t *testing.T) {
	skip := func(r *http.Request) bool { return r.URL.Path == "/healthz" || r.URL.Path == "/metrics" }

	tests := []struct {
		path    string
		skip    func(*http.Request) bool
		wantLog bool
	}{
		{"/healthz", skip, false},
		{"/metrics", skip, false},
		{"/api/v1/builds", skip, true},
		{"/healthz", nil, true},
	}
	for _, tt := range tests {
		buf := logRequest(t, tt.skip, status(http.StatusOK), httptest.NewRequest(http.MethodGet, tt.path, nil))
		if got := buf.Len() > 0; got != tt.wantLog {
			t.Errorf("%s (skip set: %v): logged %v, want %v", tt.path, tt.skip != nil, got, tt.wantLog)
		}
	}
}
