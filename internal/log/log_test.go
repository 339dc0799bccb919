package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")

	l.Info("dropped")
	l.Warnf("kept %d", 1)
	l.With("drone", "drone-1").Error("failed", "op", "remove")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("records = %d, want 2:\n%s", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec["msg"] != "failed" || rec["drone"] != "drone-1" || rec["op"] != "remove" {
		t.Errorf("record = %v", rec)
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Debug("x")
	l.Info("x")
	l.Infof("%s", "x")
	if l.With("a", 1) != nil {
		t.Error("With on nil logger returned non-nil")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewFile(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Dir: dir, Level: "debug"})
	l.Debug("to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if l.LogFile != filepath.Join(dir, "planner.slog") {
		t.Errorf("LogFile = %q", l.LogFile)
	}
	data, err := os.ReadFile(l.LogFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte("to file")) {
		t.Errorf("log file missing record:\n%s", data)
	}
}
