package learn

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"learning/internal/dataset"
)

// scriptedModel reports a fixed sequence of step errors and outputs a constant.
type scriptedModel struct {
	Progress
	output     float64
	errors     []StepError
	convergeAt int
	resets     int
	hookCalls  map[string]int
}

func newScriptedModel(output float64, errs ...float64) *scriptedModel {
	m := &scriptedModel{output: output, hookCalls: map[string]int{}}
	for _, e := range errs {
		m.errors = append(m.errors, Err(e))
	}
	return m
}

func (m *scriptedModel) Activate(inputs *mat.Dense) (*mat.Dense, error) {
	rows, _ := inputs.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, m.output)
	}
	return out, nil
}

func (m *scriptedModel) Reset() error {
	m.resets++
	return nil
}

func (m *scriptedModel) Strategy() Strategy {
	return BatchStrategy(m.step, Hooks{
		PreTrain:      m.countHook("pre_train"),
		PostTrain:     m.countHook("post_train"),
		PreIteration:  m.countHook("pre_iteration"),
		PostIteration: m.countHook("post_iteration"),
	})
}

func (m *scriptedModel) step(_, _ *mat.Dense) (StepError, error) {
	if m.convergeAt > 0 && m.Iteration >= m.convergeAt {
		m.Converged = true
	}
	if len(m.errors) == 0 {
		return NoError, nil
	}
	idx := m.Iteration - 1
	if idx >= len(m.errors) {
		idx = len(m.errors) - 1
	}
	return m.errors[idx], nil
}

func (m *scriptedModel) countHook(name string) HookFunc {
	return func(context.Context, *mat.Dense, *mat.Dense) error {
		m.hookCalls[name]++
		return nil
	}
}

// constantModel learns nothing; its residual is target minus its constant output.
type constantModel struct {
	Progress
	output     float64
	noResidual bool
}

func (m *constantModel) Activate(inputs *mat.Dense) (*mat.Dense, error) {
	rows, _ := inputs.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, m.output)
	}
	return out, nil
}

func (m *constantModel) Reset() error { return nil }

func (m *constantModel) Strategy() Strategy {
	return IncrementalStrategy(func(_, target []float64) ([]float64, error) {
		if m.noResidual {
			return nil, nil
		}
		return []float64{target[0] - m.output}, nil
	}, Hooks{})
}

func singlePattern(t *testing.T) dataset.Dataset {
	t.Helper()
	data, err := dataset.FromRows([][]float64{{0}}, [][]float64{{0}})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return data
}

func quietOptions() Options {
	opts := DefaultOptions()
	opts.StagnantThreshold = 0.01
	return opts
}
