package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigFromSettings_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(ConfigFromSettings(&buf, "warn", "json", ComponentApp))

	logger.Info("hidden")
	logger.Warn("shown", FieldFeature, "speech")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "shown" || entry[FieldComponent] != ComponentApp || entry[FieldFeature] != "speech" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("default component = %q", l.Component())
	}

	var buf bytes.Buffer
	base := New(ConfigFromSettings(&buf, "info", "text", ComponentApp))

	var got *Logger
	h := Middleware(base)(ComponentMiddleware(ComponentHTTP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("component logger not installed: %+v", got)
	}
}

func TestStructuredLogger_LogFeatureError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(ConfigFromSettings(&buf, "info", "text", ComponentApp)))

	sl.LogFeatureError(context.Background(), "budget", OpRead, errors.New("disk I/O error"))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "feature=budget", "operation=read", `error="disk I/O error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
