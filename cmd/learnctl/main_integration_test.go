//go:build sqlite

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSQLiteCommandsShareRuns(t *testing.T) {
	ctx := context.Background()
	workdir := t.TempDir()
	dbPath := filepath.Join(workdir, "learning.db")
	common := []string{"--store", "sqlite", "--db-path", dbPath, "--artifacts-dir", ""}

	out := captureOutput(t)
	if err := run(ctx, append([]string{"train", "--iterations", "50", "--json"}, common...)); err != nil {
		t.Fatalf("train: %v", err)
	}
	var summary map[string]any
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	runID, _ := summary["run_id"].(string)
	modelID, _ := summary["model_id"].(string)

	out.Reset()
	if err := run(ctx, append([]string{"runs"}, common...)); err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out.String(), "run_id="+runID) {
		t.Fatalf("expected run in listing: %q", out.String())
	}

	out.Reset()
	if err := run(ctx, append([]string{"history", "--json"}, common...)); err != nil {
		t.Fatalf("history: %v", err)
	}
	var history []float64
	if err := json.Unmarshal(out.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) == 0 {
		t.Fatal("expected a non-empty error history")
	}

	out.Reset()
	if err := run(ctx, append([]string{"predict", "--model-id", modelID, "--input", "0,0;1,1"}, common...)); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 2 {
		t.Fatalf("unexpected predict output: %q", out.String())
	}

	out.Reset()
	if err := run(ctx, append([]string{"compare", "--model-id", modelID}, common...)); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 4 {
		t.Fatalf("unexpected compare output: %q", out.String())
	}

	plotPath := filepath.Join(workdir, "history.svg")
	if err := run(ctx, append([]string{"plot", "--run-ids", runID, "--out", plotPath}, common...)); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if _, err := os.Stat(plotPath); err != nil {
		t.Fatalf("expected plot: %v", err)
	}
}
