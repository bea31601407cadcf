package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", true)

	l.Info("hidden")
	l.Warn("shown", "session_id", "s1")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record written at warn level: %s", out)
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, out)
	}
	if rec["msg"] != "shown" || rec["session_id"] != "s1" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestComponent(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { Set(prev) })

	var buf bytes.Buffer
	Set(New(&buf, "debug", false))

	Component("janitor").Debug("tick")
	if !strings.Contains(buf.String(), "component=janitor") {
		t.Fatalf("component attribute missing: %q", buf.String())
	}
}
