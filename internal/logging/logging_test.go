package logging

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
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("warn", "json", &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", "attempts", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines=%q, want 1", lines)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if entry["msg"] != "kept" || entry["attempts"] != float64(3) {
		t.Fatalf("entry=%v", entry)
	}
}

func TestSetup_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("debug", "text", &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	logger.Debug("retrying", "attempt", 2)
	out := buf.String()
	if !strings.Contains(out, "retrying") || !strings.Contains(out, "attempt") {
		t.Fatalf("output=%q", out)
	}
}

func TestSetup_UnknownFormat(t *testing.T) {
	if _, err := Setup("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error")
	}
}
