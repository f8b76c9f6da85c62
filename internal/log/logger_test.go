package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer, level Level, jsonOutput bool) *DefaultLogger {
	l := New(LoggerConfig{Level: level, JSONOutput: jsonOutput, Output: buf})
	l.core.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, InfoLevel, false)

	l.Debug("hidden")
	l.Info("analyzed", "function", "MAIN", "blocks", 4)

	want := "[2024-01-02 03:04:05] INFO: analyzed function=MAIN blocks=4\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, DebugLevel, false)

	fileLog := l.With("file", "main.src")
	fileLog.Warn("defect", "kind", "unresolved_branch_target")
	l.Debug("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "WARN: defect file=main.src kind=unresolved_branch_target") {
		t.Errorf("Unexpected line %q", lines[0])
	}
	if strings.Contains(lines[1], "file=") {
		t.Errorf("With must not change the parent logger: %q", lines[1])
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, DebugLevel, true)

	l.Error("analysis failed", "function", "MAIN", "error", errors.New("empty function"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Invalid JSON %q: %v", buf.String(), err)
	}
	if entry["level"] != "ERROR" || entry["message"] != "analysis failed" {
		t.Errorf("Unexpected entry %v", entry)
	}
	if entry["function"] != "MAIN" || entry["error"] != "empty function" {
		t.Errorf("Missing fields in %v", entry)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, ErrorLevel, false)

	l.Warn("hidden")
	l.SetLevel(WarnLevel)
	l.Warn("shown")

	if got := buf.String(); !strings.Contains(got, "shown") || strings.Contains(got, "hidden") {
		t.Errorf("Unexpected output %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	l.With("k", "v").Info("nothing")
}

func TestSpinnerDisabledOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewProgressSpinner(&buf, "working")
	s.Start()
	s.Message("still working")
	s.Stop()
	if buf.Len() != 0 {
		t.Errorf("Expected no output off a terminal, got %q", buf.String())
	}
}
