package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogsColorizedText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelDebug)
	log.Info("daemon started", "job", "hello")

	out := buf.String()
	if !strings.Contains(out, "daemon started") || !strings.Contains(out, "job=hello") {
		t.Fatalf("expected message and attrs in output, got %q", out)
	}
	if !strings.Contains(out, "\033[32m") {
		t.Fatalf("expected green ANSI code for info level, got %q", out)
	}
}

func TestNewColorsByProcessState(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelDebug)
	log.Info("process state transition", "process", "hello-0", "state", "FATAL")

	out := buf.String()
	if !strings.Contains(out, "\033[31mFATAL\033[0m") {
		t.Fatalf("expected FATAL state to render in red, got %q", out)
	}
}

func TestNewHonorsLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)
	log.Debug("should not appear")
	log.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("debug record leaked past Warn level filter: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected warn record in output, got %q", out)
	}
}
