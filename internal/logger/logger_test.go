package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Info("test message", slog.String("key", "value"))

	entry := decode(t, &buf)
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
	if entry["service"] != "feedview" {
		t.Errorf("service = %v, want %q", entry["service"], "feedview")
	}
	for _, field := range []string{"time", "level"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("expected %q field in JSON log output", field)
		}
	}
}

func TestSetup_SuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug log should be suppressed at INFO, got %s", buf.String())
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	tests := []struct {
		name      string
		level     slog.Level
		logFn     func(l *slog.Logger)
		wantEmpty bool
	}{
		{"DEBUGレベルでDEBUGを出力", slog.LevelDebug, func(l *slog.Logger) { l.Debug("x") }, false},
		{"WARNレベルでINFOを抑制", slog.LevelWarn, func(l *slog.Logger) { l.Info("x") }, true},
		{"WARNレベルでWARNを出力", slog.LevelWarn, func(l *slog.Logger) { l.Warn("x") }, false},
		{"ERRORレベルでWARNを抑制", slog.LevelError, func(l *slog.Logger) { l.Warn("x") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFn(New(&buf, tt.level))
			if (buf.Len() == 0) != tt.wantEmpty {
				t.Errorf("output empty = %v, want %v (raw: %s)", buf.Len() == 0, tt.wantEmpty, buf.String())
			}
		})
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l := SetupDefault(&buf, slog.LevelInfo)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	slog.Info("global message", slog.Int("items_count", 25))

	entry := decode(t, &buf)
	if entry["msg"] != "global message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "global message")
	}
	if entry["items_count"] != float64(25) {
		t.Errorf("items_count = %v, want 25", entry["items_count"])
	}
	if !strings.Contains(buf.String(), `"level":"INFO"`) {
		t.Errorf("expected INFO level, got %s", buf.String())
	}
}
