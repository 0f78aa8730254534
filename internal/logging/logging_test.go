package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewJSONRenamesTimeKey(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", "json", &buf)
	logger.Info("checked", "files", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if _, ok := record["timestamp"]; !ok {
		t.Fatalf("expected timestamp key, got %v", record)
	}
	if _, ok := record["time"]; ok {
		t.Fatalf("unexpected time key, got %v", record)
	}
	if record["msg"] != "checked" || record["files"] != float64(3) {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "text", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "gap", "Outer")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "gap=Outer") || !strings.Contains(out, "timestamp=") {
		t.Fatalf("unexpected text output %q", out)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger should not be enabled")
	}
}
