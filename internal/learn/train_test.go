package learn

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"learning/internal/dataset"
)

func TestTrainBreaksOnStagnation(t *testing.T) {
	m := newScriptedModel(1, 1.0)
	opts := quietOptions()
	opts.StagnantDistance = 5

	result, err := Train(context.Background(), m, singlePattern(t), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if m.Iteration != 6 || result.Iterations != 6 {
		t.Fatalf("expected stop at iteration 6, got model=%d result=%d", m.Iteration, result.Iterations)
	}
}

func TestTrainDoesNotBreakOnWrappedErrors(t *testing.T) {
	m := newScriptedModel(1, 1.0, 0.9, 0.8, 0.7, 1.0)
	opts := quietOptions()
	opts.StagnantDistance = 4

	if _, err := Train(context.Background(), m, singlePattern(t), opts); err != nil {
		t.Fatalf("train: %v", err)
	}
	if m.Iteration != 9 {
		t.Fatalf("expected stop at iteration 9, got %d", m.Iteration)
	}
}

func TestTrainBreaksOnModelConvergence(t *testing.T) {
	m := newScriptedModel(1, 1.0)
	m.convergeAt = 1

	result, err := Train(context.Background(), m, singlePattern(t), quietOptions())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Iterations != 1 || !result.Converged {
		t.Fatalf("expected converged after 1 iteration, got %+v", result)
	}
}

func TestTrainBreaksWhenErrorStopsImproving(t *testing.T) {
	tests := []struct {
		name   string
		errors []float64
		want   int
	}{
		{name: "constant", errors: []float64{1.0}, want: 6},
		{name: "improves then stalls", errors: []float64{1.0, 0.9, 0.8, 0.7, 1.0}, want: 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newScriptedModel(1, tc.errors...)
			opts := DefaultOptions()
			opts.StagnantThreshold = -1
			opts.ErrorImproveIters = 5

			if _, err := Train(context.Background(), m, singlePattern(t), opts); err != nil {
				t.Fatalf("train: %v", err)
			}
			if m.Iteration != tc.want {
				t.Fatalf("expected stop at iteration %d, got %d", tc.want, m.Iteration)
			}
		})
	}
}

func TestTrainBreaksBelowErrorBreak(t *testing.T) {
	m := newScriptedModel(1, 1.0, 0.5, 0.001)
	result, err := Train(context.Background(), m, singlePattern(t), quietOptions())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Iterations != 3 {
		t.Fatalf("expected stop at iteration 3, got %d", result.Iterations)
	}
	if v, ok := result.Error.Value(); !ok || v != 0.001 {
		t.Fatalf("unexpected final error: %s", result.Error)
	}
	if len(result.History) != 3 {
		t.Fatalf("unexpected history: %v", result.History)
	}
}

func TestTrainWithoutErrorSignalRunsAllIterations(t *testing.T) {
	m := newScriptedModel(1)
	opts := quietOptions()
	opts.Iterations = 7

	result, err := Train(context.Background(), m, singlePattern(t), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Iterations != 7 || result.Error.Defined() || len(result.History) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if m.hookCalls["pre_iteration"] != 7 || m.hookCalls["post_iteration"] != 7 {
		t.Fatalf("unexpected iteration hook calls: %v", m.hookCalls)
	}
	if m.hookCalls["pre_train"] != 1 || m.hookCalls["post_train"] != 1 {
		t.Fatalf("unexpected train hook calls: %v", m.hookCalls)
	}
}

func TestTrainRetriesResetModel(t *testing.T) {
	m := newScriptedModel(1, 1.0)
	opts := quietOptions()
	opts.Retries = 2

	result, err := Train(context.Background(), m, singlePattern(t), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Attempts != 3 || m.resets != 2 {
		t.Fatalf("expected 3 attempts and 2 resets, got attempts=%d resets=%d", result.Attempts, m.resets)
	}
	if m.hookCalls["pre_train"] != 1 || m.hookCalls["post_train"] != 1 {
		t.Fatalf("train hooks should run once: %v", m.hookCalls)
	}
}

func TestTrainRetriesAfterInaccurateConvergence(t *testing.T) {
	// Converges on the first step while its output misses the target.
	m := newScriptedModel(1, 1.0)
	m.convergeAt = 1
	opts := quietOptions()
	opts.Retries = 2

	result, err := Train(context.Background(), m, singlePattern(t), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Attempts != 3 || m.resets != 2 {
		t.Fatalf("expected 3 attempts and 2 resets, got attempts=%d resets=%d", result.Attempts, m.resets)
	}
	if result.Iterations != 1 || !result.Converged {
		t.Fatalf("expected the last attempt to converge after 1 iteration, got %+v", result)
	}
}

func TestTrainSkipsRetryWhenDatasetErrorIsLow(t *testing.T) {
	// Step errors stay high but the model already fits the dataset.
	m := newScriptedModel(0, 1.0)
	opts := quietOptions()
	opts.Retries = 2

	result, err := Train(context.Background(), m, singlePattern(t), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Attempts != 1 || m.resets != 0 {
		t.Fatalf("expected a single attempt, got attempts=%d resets=%d", result.Attempts, m.resets)
	}
}

func TestTrainHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newScriptedModel(1, 1.0)
	if _, err := Train(ctx, m, singlePattern(t), quietOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestTrainRejectsInvalidOptions(t *testing.T) {
	cases := []func(*Options){
		func(o *Options) { o.Iterations = 0 },
		func(o *Options) { o.Retries = -1 },
		func(o *Options) { o.StagnantDistance = 0 },
		func(o *Options) { o.ErrorImproveIters = -1 },
	}
	for i, mutate := range cases {
		opts := DefaultOptions()
		mutate(&opts)
		if _, err := Train(context.Background(), newScriptedModel(1, 1), singlePattern(t), opts); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestTrainInvokesPostPatternForBatchRows(t *testing.T) {
	data, err := dataset.FromRows([][]float64{{0}, {1}, {2}}, [][]float64{{0}, {1}, {2}})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	m := newScriptedModel(1)
	opts := quietOptions()
	opts.Iterations = 2
	var seen []float64
	opts.PostPattern = func(_ Model, input, _ []float64) {
		seen = append(seen, input[0])
	}

	if _, err := Train(context.Background(), m, data, opts); err != nil {
		t.Fatalf("train: %v", err)
	}
	want := []float64{0, 1, 2, 0, 1, 2}
	if len(seen) != len(want) {
		t.Fatalf("unexpected callback patterns: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("unexpected callback patterns: %v", seen)
		}
	}
}

func TestTrainStepAveragesResiduals(t *testing.T) {
	m := &constantModel{output: 1}
	inputs := mat.NewDense(2, 1, []float64{0, 0})
	targets := mat.NewDense(2, 1, []float64{0, 3})
	calls := 0

	stepErr, err := TrainStep(m, inputs, targets, func(Model, []float64, []float64) { calls++ })
	if err != nil {
		t.Fatalf("train step: %v", err)
	}
	// residuals -1 and 2
	if v, ok := stepErr.Value(); !ok || math.Abs(v-2.5) > 1e-12 {
		t.Fatalf("unexpected step error: %s", stepErr)
	}
	if calls != 2 {
		t.Fatalf("expected callback per pattern, got %d", calls)
	}
}

func TestTrainStepWithoutResidual(t *testing.T) {
	m := &constantModel{output: 1, noResidual: true}
	stepErr, err := TrainStep(m, mat.NewDense(1, 1, nil), mat.NewDense(1, 1, nil), nil)
	if err != nil {
		t.Fatalf("train step: %v", err)
	}
	if stepErr.Defined() {
		t.Fatalf("expected no error signal, got %s", stepErr)
	}
}

func TestTrainStepRequiresIncrementalStrategy(t *testing.T) {
	if _, err := TrainStep(newScriptedModel(1), mat.NewDense(1, 1, nil), mat.NewDense(1, 1, nil), nil); err == nil {
		t.Fatal("expected strategy error")
	}
}

func TestStepErrorString(t *testing.T) {
	if got := NoError.String(); got != "none" {
		t.Fatalf("unexpected no-error string: %s", got)
	}
	if got := Err(0.25).String(); got != "0.25" {
		t.Fatalf("unexpected error string: %s", got)
	}
	if v, ok := Err(0).Value(); !ok || v != 0 {
		t.Fatal("zero error should still be defined")
	}
}
