package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/services"
)

func TestNewFromConfigWritesDailyFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "warn"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("suppressed")
	logger.Warn("kept message")

	content, err := os.ReadFile(logging.LogFilePath(cfg.Paths.LogDir, time.Now()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "suppressed") {
		t.Fatalf("expected info line to be filtered, got %q", content)
	}
	if !strings.Contains(string(content), "kept message") {
		t.Fatalf("expected warn line in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "0123456789abcdef")
	ctx = services.WithInterval(ctx, 4)
	ctx = services.WithStage(ctx, "synthesize")
	logger = logging.NewComponentLogger(logging.WithContext(ctx, logger), "dubbing")
	logger.Info("clip ready", logging.String("path", "/tmp/x.wav"), logging.Int("attempt", 2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{
		"INFO [dubbing] Run 01234567 · #4 (synthesize) - clip ready",
		"    - path: /tmp/x.wav",
		"    - attempt: 2",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output, got %q", want, text)
		}
	}
	if strings.Contains(text, "run_id:") {
		t.Fatalf("expected run_id to be lifted into the header, got %q", text)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithInterval(ctx, 0)
	logging.WithContext(ctx, logger).Info("hello", logging.Error(errors.New("boom")))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, content)
	}
	if entry["msg"] != "hello" || entry["level"] != "info" {
		t.Fatalf("unexpected envelope: %#v", entry)
	}
	if entry[logging.FieldRunID] != "run-1" {
		t.Fatalf("expected run_id run-1, got %#v", entry[logging.FieldRunID])
	}
	if entry[logging.FieldInterval] != float64(0) {
		t.Fatalf("expected interval 0, got %#v", entry[logging.FieldInterval])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", entry)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "slow", "slow_clip", logging.String(logging.FieldImpact, "clip truncated"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "slow_clip" {
		t.Fatalf("expected event_type slow_clip, got %#v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldImpact] != "clip truncated" {
		t.Fatalf("expected caller impact preserved, got %#v", entry[logging.FieldImpact])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
}

func TestErrorWithContextCarriesDecision(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	attrs := append(logging.DecisionAttrs("stretch", "rejected", "ratio above limit"), logging.Error(nil))
	logging.ErrorWithContext(logger, "stretch failed", "stretch_failed", attrs...)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		logging.FieldEventType:    "stretch_failed",
		logging.FieldDecisionType: "stretch",
		logging.FieldErrorHint:    "check logs for details",
		"decision_result":         "rejected",
		"decision_reason":         "ratio above limit",
		"error":                   "<nil>",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("%s = %#v, want %#v", key, entry[key], value)
		}
	}
	if _, ok := entry[logging.FieldImpact]; ok {
		t.Fatalf("error lines should not carry a default impact: %#v", entry)
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		run, interval, stage string
		want                 string
	}{
		{"", "", "", ""},
		{"abc", "", "", "Run abc"},
		{"", "3", "", "#3"},
		{"", "", "assemble", "assemble"},
		{"abcdefghijk", "1", "mix", "Run abcdefgh · #1 (mix)"},
	}
	for _, tt := range tests {
		if got := logging.FormatSubject(tt.run, tt.interval, tt.stage); got != tt.want {
			t.Errorf("FormatSubject(%q,%q,%q) = %q, want %q", tt.run, tt.interval, tt.stage, got, tt.want)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled")
	}
	logger.Error("ignored")
}
