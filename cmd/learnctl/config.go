package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"learning/pkg/learning"
)

// loadTrainRequestFromConfig reads a JSON train config on top of the defaults.
// Unknown keys are ignored.
func loadTrainRequestFromConfig(path string) (learning.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return learning.TrainRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return learning.TrainRequest{}, err
	}

	req := learning.DefaultTrainRequest()
	if v, ok := asString(raw["model"]); ok {
		req.Model = v
	}
	if v, ok := asString(raw["dataset"]); ok {
		req.Dataset = v
	}
	if v, ok := asString(raw["csv_path"]); ok {
		req.CSVPath = v
	}
	if v, ok := asInt(raw["target_columns"]); ok {
		req.TargetColumns = v
	}
	if v, ok := asInt(raw["clusters"]); ok {
		req.Clusters = v
	}
	if v, ok := asFloat64(raw["variance"]); ok {
		req.Variance = v
	}
	if v, ok := asBool(raw["cluster_incrementally"]); ok {
		req.ClusterIncrementally = v
	}
	if v, ok := asString(raw["optimizer"]); ok {
		req.Optimizer = v
	}
	if v, ok := asString(raw["error_func"]); ok {
		req.ErrorFunc = v
	}
	if items, ok := raw["hidden"].([]any); ok {
		hidden := make([]int, 0, len(items))
		for _, item := range items {
			v, ok := asInt(item)
			if !ok {
				return learning.TrainRequest{}, errors.Errorf("hidden layer size must be a number, got %v", item)
			}
			hidden = append(hidden, v)
		}
		req.Hidden = hidden
	}
	if items, ok := raw["transfers"].([]any); ok {
		transfers := make([]string, 0, len(items))
		for _, item := range items {
			v, ok := asString(item)
			if !ok {
				return learning.TrainRequest{}, errors.Errorf("transfer must be a string, got %v", item)
			}
			transfers = append(transfers, v)
		}
		req.Transfers = transfers
	}
	if v, ok := asFloat64(raw["learning_rate"]); ok {
		req.LearningRate = v
	}
	if v, ok := asFloat64(raw["momentum"]); ok {
		req.Momentum = v
	}
	if v, ok := asInt(raw["iterations"]); ok {
		req.Iterations = v
	}
	if v, ok := asInt(raw["retries"]); ok {
		req.Retries = v
	}
	if v, ok := asFloat64(raw["error_break"]); ok {
		req.ErrorBreak = v
	}
	if v, ok := asInt(raw["stagnant_distance"]); ok {
		req.StagnantDistance = v
	}
	if v, ok := asFloat64(raw["stagnant_threshold"]); ok {
		req.StagnantThreshold = v
	}
	if v, ok := asInt(raw["error_improve_iters"]); ok {
		req.ErrorImproveIters = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asBool(raw["stochastic"]); ok {
		req.Stochastic = v
	}
	if v, ok := asInt(raw["rounds"]); ok {
		req.Rounds = v
	}
	if v, ok := asFloat64(raw["stochastic_error_break"]); ok {
		req.StochasticErrorBreak = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asBool(raw["logging"]); ok {
		req.Logging = v
	}
	return req, nil
}

func loadOrDefaultTrainRequest(configPath string) (learning.TrainRequest, error) {
	if configPath == "" {
		return learning.DefaultTrainRequest(), nil
	}
	req, err := loadTrainRequestFromConfig(configPath)
	if err != nil {
		return learning.TrainRequest{}, errors.Wrap(err, "load config")
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags set on the command line, so a
// config file keeps every value the user did not repeat.
func overrideFromFlags(req *learning.TrainRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "model":
			req.Model = v.(string)
		case "dataset":
			req.Dataset = v.(string)
		case "csv":
			req.CSVPath = v.(string)
		case "targets":
			req.TargetColumns = v.(int)
		case "clusters":
			req.Clusters = v.(int)
		case "variance":
			req.Variance = v.(float64)
		case "cluster-incrementally":
			req.ClusterIncrementally = v.(bool)
		case "optimizer":
			req.Optimizer = v.(string)
		case "error-func":
			req.ErrorFunc = v.(string)
		case "hidden":
			hidden, err := parseInts(v.(string))
			if err != nil {
				return errors.Wrap(err, "hidden")
			}
			req.Hidden = hidden
		case "transfers":
			req.Transfers = splitList(v.(string))
		case "learning-rate":
			req.LearningRate = v.(float64)
		case "momentum":
			req.Momentum = v.(float64)
		case "iterations":
			req.Iterations = v.(int)
		case "retries":
			req.Retries = v.(int)
		case "error-break":
			req.ErrorBreak = v.(float64)
		case "stagnant-distance":
			req.StagnantDistance = v.(int)
		case "stagnant-threshold":
			req.StagnantThreshold = v.(float64)
		case "error-improve-iters":
			req.ErrorImproveIters = v.(int)
		case "selection":
			req.Selection = v.(string)
		case "batch-size":
			req.BatchSize = v.(int)
		case "stochastic":
			req.Stochastic = v.(bool)
		case "rounds":
			req.Rounds = v.(int)
		case "stochastic-error-break":
			req.StochasticErrorBreak = v.(float64)
		case "seed":
			req.Seed = v.(int64)
		case "logging":
			req.Logging = v.(bool)
		}
	}
	return nil
}
