package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "scan finished",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tscan finished\n",
		},
		{
			name:    "warn level",
			opID:    "op-456",
			level:   slog.LevelWarn,
			message: "duplicate",
			want:    "2024-06-15T14:30:45Z\tWARN\top-456\tduplicate\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "new file",
			attrs:   []slog.Attr{slog.String("path", "docs/file.txt"), slog.Int("id", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tnew file\tpath=docs/file.txt\tid=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &logHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLogHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &logHandler{w: &buf, opID: "op-1", level: slog.LevelDebug}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "scan")}).(*logHandler)
	if h2.level != slog.LevelDebug {
		t.Errorf("WithAttrs() level = %v, want %v", h2.level, slog.LevelDebug)
	}

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "observe", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=scan") {
		t.Errorf("expected pre-set attr component=scan, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
}

func TestLogHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &logHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*logHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestLogHandler_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		min     slog.Level
		level   slog.Level
		enabled bool
	}{
		{name: "debug at debug", min: slog.LevelDebug, level: slog.LevelDebug, enabled: true},
		{name: "debug at info", min: slog.LevelInfo, level: slog.LevelDebug, enabled: false},
		{name: "info at info", min: slog.LevelInfo, level: slog.LevelInfo, enabled: true},
		{name: "error at info", min: slog.LevelInfo, level: slog.LevelError, enabled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &logHandler{level: tt.min}
			if got := h.Enabled(context.Background(), tt.level); got != tt.enabled {
				t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.enabled)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", &stderr, slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Debug("hidden")
	logger.Info("shown", "path", "a.txt")

	if strings.Contains(stderr.String(), "hidden") {
		t.Errorf("debug line written at info level: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "test-op\tshown\tpath=a.txt") {
		t.Errorf("stderr = %q, want the info line", stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, "libstor.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != stderr.String() {
		t.Errorf("log file = %q, want same as stderr %q", data, stderr.String())
	}
}
