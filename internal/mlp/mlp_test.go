package mlp

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"learning/internal/codec"
	"learning/internal/dataset"
	"learning/internal/learn"
)

func newMLP(t *testing.T, cfg Config) *MLP {
	t.Helper()
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("new mlp: %v", err)
	}
	return m
}

func TestDefaultTransfers(t *testing.T) {
	m := newMLP(t, DefaultConfig(2, 3, 3, 1))
	want := []string{"tanh", "tanh", "identity"}
	got := m.Config().Transfers
	if len(got) != len(want) {
		t.Fatalf("unexpected transfers: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected transfers: %v", got)
		}
	}
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	cfg := DefaultConfig(2, 3, 2)
	cfg.Transfers = []string{"sigmoid", "tanh"}
	m := newMLP(t, cfg)
	input := []float64{0.3, -0.7}
	target := []float64{0.5, -0.2}

	_, grads := m.gradients(input, target)
	for li := range m.layers {
		weights := m.layers[li].weights
		data := weights.RawMatrix().Data
		numeric := fd.Gradient(nil, func(x []float64) float64 {
			saved := append([]float64(nil), data...)
			copy(data, x)
			activations, _ := m.forward(input)
			copy(data, saved)
			output := activations[len(activations)-1]
			total := 0.0
			for j := range output {
				d := output[j] - target[j]
				total += 0.5 * d * d
			}
			return total
		}, append([]float64(nil), data...), &fd.Settings{Formula: fd.Central})

		analytic := grads[li].RawMatrix().Data
		for i := range numeric {
			if math.Abs(numeric[i]-analytic[i]) > 1e-6 {
				t.Fatalf("layer %d weight %d: analytic=%f numeric=%f", li, i, analytic[i], numeric[i])
			}
		}
	}
}

func TestIncrementReturnsResidualBeforeUpdate(t *testing.T) {
	m := newMLP(t, DefaultConfig(1, 2, 1))
	input := mat.NewDense(1, 1, []float64{0.5})
	before, err := m.Activate(input)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	residual, err := m.trainIncrement([]float64{0.5}, []float64{1})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if math.Abs(residual[0]-(1-before.At(0, 0))) > 1e-12 {
		t.Fatalf("unexpected residual: %v", residual)
	}
	after, _ := m.Activate(input)
	if math.Abs(1-after.At(0, 0)) >= math.Abs(residual[0]) {
		t.Fatalf("expected update toward target: before=%f after=%f", before.At(0, 0), after.At(0, 0))
	}
	if _, err := m.trainIncrement([]float64{0.5, 1}, []float64{1}); err == nil {
		t.Fatal("expected attribute count error")
	}
}

func TestTrainingReducesXORError(t *testing.T) {
	m := newMLP(t, DefaultConfig(2, 4, 1))
	data := dataset.XOR()
	before, err := learn.AvgMSE(m, data)
	if err != nil {
		t.Fatalf("avg mse: %v", err)
	}
	opts := learn.DefaultOptions()
	opts.Iterations = 300

	result, err := learn.Train(context.Background(), m, data, opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !result.Error.Defined() || len(result.History) == 0 {
		t.Fatalf("expected an error signal, got %+v", result)
	}
	after, err := learn.AvgMSE(m, data)
	if err != nil {
		t.Fatalf("avg mse: %v", err)
	}
	if after >= before {
		t.Fatalf("expected lower error: before=%f after=%f", before, after)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	m := newMLP(t, DefaultConfig(2, 3, 1))
	m.Iteration = 12
	blob, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	restored, err := Unserialize(blob)
	if err != nil {
		t.Fatalf("unserialize: %v", err)
	}
	if restored == m {
		t.Fatal("expected a distinct instance")
	}
	data := dataset.XOR()
	want, _ := m.Activate(data.Inputs)
	got, err := restored.Activate(data.Inputs)
	if err != nil {
		t.Fatalf("activate restored: %v", err)
	}
	if !mat.Equal(want, got) || restored.Iteration != 12 {
		t.Fatal("restored mlp differs from original")
	}

	foreign, _ := codec.Encode("rbf", struct{}{})
	if _, err := Unserialize(foreign); !errors.Is(err, codec.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got: %v", err)
	}
}

func TestRestoredResetMatchesOriginal(t *testing.T) {
	m := newMLP(t, DefaultConfig(2, 3, 1))
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	blob, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	restored, err := Unserialize(blob)
	if err != nil {
		t.Fatalf("unserialize: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("reset original: %v", err)
	}
	if err := restored.Reset(); err != nil {
		t.Fatalf("reset restored: %v", err)
	}
	data := dataset.XOR()
	want, _ := m.Activate(data.Inputs)
	got, err := restored.Activate(data.Inputs)
	if err != nil {
		t.Fatalf("activate restored: %v", err)
	}
	if !mat.Equal(want, got) {
		t.Fatal("restored mlp drew different weights on reset")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []Config{
		DefaultConfig(2),
		DefaultConfig(2, 0, 1),
		{Layers: []int{2, 1}, Transfers: []string{"tanh", "tanh"}, LearningRate: 0.1},
		{Layers: []int{2, 1}, LearningRate: 0},
		{Layers: []int{2, 1}, LearningRate: 0.1, Momentum: 1},
		{Layers: []int{2, 1}, LearningRate: 0.1, Transfers: []string{"missing"}},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
