package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/af-corp/prompt-gateway/internal/config"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(requestIDKey).(string)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	req.Header.Set("X-Request-ID", "client-id")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "client-id" || w.Header().Get("X-Request-ID") != "client-id" {
		t.Errorf("expected client request ID to be kept, got ctx=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api", nil))
	if !strings.HasPrefix(w.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("expected generated request ID, got %q", w.Header().Get("X-Request-ID"))
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg   config.TelemetryConfig
		level slog.Level
	}{
		{config.TelemetryConfig{LogLevel: "debug", LogFormat: "json"}, slog.LevelDebug},
		{config.TelemetryConfig{LogLevel: "warn", LogFormat: "text"}, slog.LevelWarn},
		{config.TelemetryConfig{LogLevel: "bogus"}, slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := newLogger(tt.cfg)
		if !logger.Enabled(context.Background(), tt.level) {
			t.Errorf("%+v: expected level %s enabled", tt.cfg, tt.level)
		}
		if tt.level > slog.LevelDebug && logger.Enabled(context.Background(), tt.level-4) {
			t.Errorf("%+v: expected level below %s disabled", tt.cfg, tt.level)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	healthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}
