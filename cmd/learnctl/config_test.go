package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train_config.json")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTrainRequestFromConfig(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"model":               "mlp",
		"dataset":             "and",
		"hidden":              []any{3, 2},
		"transfers":           []any{"relu", "tanh", "identity"},
		"learning_rate":       0.05,
		"iterations":          250,
		"retries":             2,
		"error_break":         0.01,
		"stagnant_threshold":  -1,
		"error_improve_iters": 40,
		"selection":           "random",
		"batch_size":          3,
		"seed":                77,
		"logging":             true,
		"unknown_key":         "ignored",
	})

	req, err := loadTrainRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load train request: %v", err)
	}
	if req.Model != "mlp" || req.Dataset != "and" || req.Seed != 77 || !req.Logging {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if len(req.Hidden) != 2 || req.Hidden[0] != 3 || req.Hidden[1] != 2 {
		t.Fatalf("unexpected hidden layers: %v", req.Hidden)
	}
	if len(req.Transfers) != 3 || req.Transfers[0] != "relu" {
		t.Fatalf("unexpected transfers: %v", req.Transfers)
	}
	if req.Iterations != 250 || req.Retries != 2 || req.ErrorBreak != 0.01 || req.StagnantThreshold != -1 || req.ErrorImproveIters != 40 {
		t.Fatalf("unexpected training options: %+v", req)
	}
	if req.Selection != "random" || req.BatchSize != 3 || req.LearningRate != 0.05 {
		t.Fatalf("unexpected selection fields: %+v", req)
	}
	// untouched keys keep their defaults
	if req.StagnantDistance != 5 || req.TargetColumns != 1 {
		t.Fatalf("expected defaults to survive: %+v", req)
	}
}

func TestLoadTrainRequestFromConfigRejectsBadLists(t *testing.T) {
	path := writeConfig(t, map[string]any{"hidden": []any{"wide"}})
	if _, err := loadTrainRequestFromConfig(path); err == nil {
		t.Fatal("expected hidden layer error")
	}
	path = writeConfig(t, map[string]any{"transfers": []any{1}})
	if _, err := loadTrainRequestFromConfig(path); err == nil {
		t.Fatal("expected transfer error")
	}
}

func TestLoadOrDefaultTrainRequest(t *testing.T) {
	req, err := loadOrDefaultTrainRequest("")
	if err != nil {
		t.Fatalf("default request: %v", err)
	}
	if req.Model != "rbf" || req.Dataset != "xor" {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if _, err := loadOrDefaultTrainRequest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected missing config error")
	}
}

func TestOverrideFromFlagsOnlyTouchesSetFlags(t *testing.T) {
	req, _ := loadOrDefaultTrainRequest("")
	req.Iterations = 42
	set := map[string]bool{"model": true, "hidden": true, "seed": true}
	values := map[string]any{
		"model":      "mlp",
		"hidden":     "5,4",
		"seed":       int64(9),
		"iterations": 10,
	}
	if err := overrideFromFlags(&req, set, values); err != nil {
		t.Fatalf("override: %v", err)
	}
	if req.Model != "mlp" || req.Seed != 9 || len(req.Hidden) != 2 || req.Hidden[0] != 5 {
		t.Fatalf("unexpected overrides: %+v", req)
	}
	if req.Iterations != 42 {
		t.Fatalf("unset flag should not override: iterations=%d", req.Iterations)
	}

	if err := overrideFromFlags(&req, map[string]bool{"hidden": true}, map[string]any{"hidden": "x"}); err == nil {
		t.Fatal("expected hidden parse error")
	}
}
