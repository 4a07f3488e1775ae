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
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "json")
	l.Debug("hidden")
	l.Info("slide opened", "driver", "SVS")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "slide opened" || rec["driver"] != "SVS" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestSetLogLevel(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "error", "text")
	l.Info("before")
	SetLogLevel("debug")
	defer SetLogLevel("info")
	l.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("info record logged at error level")
	}
	if !strings.Contains(out, "after") {
		t.Error("debug record missing after SetLogLevel")
	}
	if Level() != slog.LevelDebug {
		t.Errorf("Level() = %v", Level())
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	defer SetLogLevel("info")
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", "text")
	l.Info("quiet")
	l.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("env level not applied: %q", buf.String())
	}
}
