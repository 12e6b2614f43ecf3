package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	origOut, origErr := stdout, stderr
	stdout, stderr = &out, io.Discard
	t.Cleanup(func() {
		stdout, stderr = origOut, origErr
	})
	return &out
}

func TestRunRejectsMissingAndUnknownCommands(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got: %v", err)
	}
	if err := run(context.Background(), []string{"evolve"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got: %v", err)
	}
}

func TestListCommandPrintsSections(t *testing.T) {
	out := captureOutput(t)
	if err := run(context.Background(), []string{"list"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("unexpected list output: %q", out.String())
	}
	if lines[0] != "models=mlp,rbf,som" {
		t.Fatalf("unexpected models line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "transfers=") || !strings.Contains(lines[2], "tanh") {
		t.Fatalf("unexpected transfers line: %q", lines[2])
	}
}

func TestTrainCommandStochastic(t *testing.T) {
	out := captureOutput(t)
	args := []string{"train", "--store", "memory", "--artifacts-dir", "", "--model", "mlp", "--stochastic", "--rounds", "2", "--iterations", "10", "--batch-size", "2"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("train: %v", err)
	}
	if !strings.Contains(out.String(), "attempts=1") {
		t.Fatalf("unexpected stochastic output: %q", out.String())
	}
}

func TestTrainCommandMemoryJSON(t *testing.T) {
	out := captureOutput(t)
	artifacts := t.TempDir()
	args := []string{
		"train",
		"--store", "memory",
		"--artifacts-dir", artifacts,
		"--model", "mlp",
		"--hidden", "3",
		"--iterations", "30",
		"--json",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("train: %v", err)
	}

	var summary map[string]any
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary["model"] != "mlp" || summary["dataset"] != "xor" {
		t.Fatalf("unexpected summary: %v", summary)
	}
	runID, _ := summary["run_id"].(string)
	if runID == "" {
		t.Fatalf("missing run id: %v", summary)
	}
	for _, file := range []string{"run.json", "config.json", "summary.json", "error_history.csv"} {
		if _, err := os.Stat(filepath.Join(artifacts, runID, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
}

func TestTrainCommandUsesConfigFile(t *testing.T) {
	out := captureOutput(t)
	path := writeConfig(t, map[string]any{
		"model":      "som",
		"clusters":   3,
		"iterations": 5,
	})
	args := []string{"train", "--store", "memory", "--artifacts-dir", "", "--config", path}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("train: %v", err)
	}
	if !strings.Contains(out.String(), "model=som") {
		t.Fatalf("expected som run, got: %q", out.String())
	}
	if strings.Contains(out.String(), "artifacts=") {
		t.Fatalf("artifacts should be disabled: %q", out.String())
	}
}

func TestTrainCommandRejectsBadProfileMode(t *testing.T) {
	captureOutput(t)
	err := run(context.Background(), []string{"train", "--store", "memory", "--profile", "block"})
	if err == nil || !strings.Contains(err.Error(), "unsupported profile mode") {
		t.Fatalf("expected profile mode error, got: %v", err)
	}
}

func TestCommandsValidateFlags(t *testing.T) {
	captureOutput(t)
	ctx := context.Background()
	if err := run(ctx, []string{"runs", "--store", "memory", "--limit", "0"}); err == nil {
		t.Fatal("expected limit error")
	}
	if err := run(ctx, []string{"predict", "--store", "memory"}); err == nil {
		t.Fatal("expected missing model id error")
	}
	if err := run(ctx, []string{"predict", "--store", "memory", "--model-id", "m", "--input", ""}); err == nil {
		t.Fatal("expected missing input error")
	}
	if err := run(ctx, []string{"compare", "--store", "memory"}); err == nil {
		t.Fatal("expected compare model id error")
	}
	if err := run(ctx, []string{"history", "--store", "memory"}); err == nil {
		t.Fatal("expected empty store history error")
	}
	if err := run(ctx, []string{"train", "--store", "bogus"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestRunsCommandEmptyStore(t *testing.T) {
	out := captureOutput(t)
	if err := run(context.Background(), []string{"runs", "--store", "memory"}); err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no runs found" {
		t.Fatalf("unexpected runs output: %q", out.String())
	}
}

func TestParseRowsAndFormatRow(t *testing.T) {
	rows, err := parseRows("0,1; 1, 0 ;")
	if err != nil {
		t.Fatalf("parse rows: %v", err)
	}
	if len(rows) != 2 || rows[0][1] != 1 || rows[1][0] != 1 {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if _, err := parseRows("0,x"); err == nil {
		t.Fatal("expected parse error")
	}
	if got := formatRow([]float64{0.5, -1}); got != "[0.5000 -1.0000]" {
		t.Fatalf("unexpected row format: %s", got)
	}
	if got := splitList(" a, ,b "); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split: %v", got)
	}
}

func TestNewLoggerUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, true)
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
	logger.WithField("run_id", "r1").Info("hello")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != "r1" || entry["msg"] != "hello" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if newLogger(&buf, false).GetLevel() != logrus.InfoLevel {
		t.Fatal("expected info level")
	}
}
