package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, WARN, false)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below WARN should be dropped: %q", out)
	}
	if !strings.Contains(out, "WARN: shown") {
		t.Errorf("expected warn line, got %q", out)
	}
}

func TestJSONFormatCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, DEBUG, true).
		WithComponent("scheduler").
		WithField("scheduler_id", "abc")

	l.Info("frame stored", map[string]interface{}{"time_ms": 250})

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON line %q: %v", buf.String(), err)
	}
	if entry.Level != "INFO" || entry.Message != "frame stored" || entry.Component != "scheduler" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["scheduler_id"] != "abc" {
		t.Errorf("missing inherited field: %+v", entry.Fields)
	}
	if entry.Fields["time_ms"] != float64(250) {
		t.Errorf("missing call field: %+v", entry.Fields)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriterLogger(&buf, DEBUG, false)
	_ = parent.WithField("k", "v")

	parent.Info("plain")
	if strings.Contains(buf.String(), "k=v") {
		t.Errorf("parent picked up child field: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"Error", ERROR},
		{"fatal", FATAL},
		{"nonsense", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.in, got, tt.expected)
			}
		})
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "render", DEBUG, false)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer l.Close()

	logPath := filepath.Join(dir, "render", "render.log")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file at %s: %v", logPath, err)
	}

	l.Info(strings.Repeat("x", 128))
	if err := l.RotateIfNeeded(16); err != nil {
		t.Fatalf("RotateIfNeeded failed: %v", err)
	}

	matches, _ := filepath.Glob(logPath + ".*")
	if len(matches) != 1 {
		t.Errorf("expected one rotated backup, got %v", matches)
	}
}
