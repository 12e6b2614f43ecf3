// Package mlp implements a fully connected multilayer perceptron trained one
// pattern at a time with backpropagation and momentum.
package mlp

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"learning/internal/learn"
	"learning/internal/nn"
)

const (
	Kind = "mlp"

	defaultHiddenTransfer = "tanh"
	defaultOutputTransfer = "identity"
)

type Config struct {
	// Layers lists layer sizes, input attributes first and outputs last.
	Layers []int
	// Transfers names one nn transfer per non-input layer. Empty means tanh
	// for hidden layers and identity for the output layer.
	Transfers           []string
	LearningRate        float64
	Momentum            float64
	InitialWeightsRange float64
	Seed                int64
	Logging             bool
}

func DefaultConfig(layers ...int) Config {
	return Config{
		Layers:              layers,
		LearningRate:        0.1,
		Momentum:            0.3,
		InitialWeightsRange: 0.5,
		Seed:                1,
	}
}

func (c Config) Validate() error {
	if len(c.Layers) < 2 {
		return errors.New("at least an input and an output layer are required")
	}
	for i, size := range c.Layers {
		if size <= 0 {
			return errors.Errorf("layer %d size must be > 0", i)
		}
	}
	if len(c.Transfers) != 0 && len(c.Transfers) != len(c.Layers)-1 {
		return errors.Errorf("expected %d transfers, got %d", len(c.Layers)-1, len(c.Transfers))
	}
	if c.LearningRate <= 0 {
		return errors.New("learning rate must be > 0")
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.New("momentum must be in [0, 1)")
	}
	if c.InitialWeightsRange < 0 {
		return errors.New("initial weights range must be >= 0")
	}
	return nil
}

func (c Config) transferNames() []string {
	if len(c.Transfers) != 0 {
		return c.Transfers
	}
	names := make([]string, len(c.Layers)-1)
	for i := range names {
		names[i] = defaultHiddenTransfer
	}
	names[len(names)-1] = defaultOutputTransfer
	return names
}

// layer maps its inputs plus a constant bias input to its outputs. The last
// row of weights holds the bias.
type layer struct {
	weights  *mat.Dense
	previous *mat.Dense
	transfer nn.Transfer
}

type MLP struct {
	learn.Progress

	cfg    Config
	rng    *rand.Rand
	layers []layer

	// draws counts values taken from rng, so a restored network can resume it.
	draws int
}

func New(cfg Config) (*MLP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid mlp config")
	}
	cfg.Layers = append([]int(nil), cfg.Layers...)
	cfg.Transfers = append([]string(nil), cfg.transferNames()...)

	m := &MLP{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	m.Logging = cfg.Logging
	m.layers = make([]layer, len(cfg.Layers)-1)
	for i, name := range cfg.Transfers {
		transfer, err := nn.GetTransfer(name)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i+1)
		}
		m.layers[i].transfer = transfer
	}
	m.randomizeWeights()
	return m, nil
}

func (m *MLP) Config() Config {
	return m.cfg
}

func (m *MLP) randomizeWeights() {
	for i := range m.layers {
		in, out := m.cfg.Layers[i]+1, m.cfg.Layers[i+1]
		data := make([]float64, in*out)
		for j := range data {
			data[j] = (2*m.rng.Float64() - 1) * m.cfg.InitialWeightsRange
		}
		m.draws += len(data)
		m.layers[i].weights = mat.NewDense(in, out, data)
		m.layers[i].previous = mat.NewDense(in, out, nil)
	}
}

func (m *MLP) Reset() error {
	m.Iteration = 0
	m.Converged = false
	m.randomizeWeights()
	return nil
}

// Activate runs the whole batch through each layer as one matrix product.
func (m *MLP) Activate(inputs *mat.Dense) (*mat.Dense, error) {
	rows, cols := inputs.Dims()
	if cols != m.cfg.Layers[0] {
		return nil, errors.Errorf("mlp expects %d attributes, got %d", m.cfg.Layers[0], cols)
	}
	current := inputs
	for _, l := range m.layers {
		_, width := current.Dims()
		biased := mat.NewDense(rows, width+1, nil)
		biased.Copy(current)
		for i := 0; i < rows; i++ {
			biased.Set(i, width, 1)
		}
		var sums mat.Dense
		sums.Mul(biased, l.weights)
		current = nn.Apply(l.transfer, &sums)
	}
	return current, nil
}

// forward returns every layer's output, input layer first, and every
// non-input layer's weighted sum.
func (m *MLP) forward(input []float64) ([][]float64, [][]float64) {
	activations := [][]float64{input}
	sums := make([][]float64, 0, len(m.layers))
	for _, l := range m.layers {
		in := withBias(activations[len(activations)-1])
		_, outputs := l.weights.Dims()
		sum := make([]float64, outputs)
		sumVec := mat.NewVecDense(outputs, sum)
		sumVec.MulVec(l.weights.T(), mat.NewVecDense(len(in), in))
		activation := make([]float64, outputs)
		for j, v := range sum {
			activation[j] = l.transfer.Func(v)
		}
		sums = append(sums, sum)
		activations = append(activations, activation)
	}
	return activations, sums
}

func withBias(values []float64) []float64 {
	return append(append(make([]float64, 0, len(values)+1), values...), 1)
}

func (m *MLP) Strategy() learn.Strategy {
	return learn.IncrementalStrategy(m.trainIncrement, learn.Hooks{})
}

// gradients returns the network output and the gradient of half the summed
// squared error with respect to each layer's weights.
func (m *MLP) gradients(input, target []float64) ([]float64, []*mat.Dense) {
	activations, sums := m.forward(input)
	output := activations[len(activations)-1]

	delta := make([]float64, len(output))
	last := m.layers[len(m.layers)-1]
	for j := range delta {
		delta[j] = (output[j] - target[j]) * last.transfer.Derivative(sums[len(sums)-1][j], output[j])
	}

	grads := make([]*mat.Dense, len(m.layers))
	for i := len(m.layers) - 1; i >= 0; i-- {
		in := withBias(activations[i])
		grad := mat.NewDense(len(in), len(delta), nil)
		grad.Outer(1, mat.NewVecDense(len(in), in), mat.NewVecDense(len(delta), delta))
		grads[i] = grad
		if i == 0 {
			break
		}

		below := m.layers[i-1]
		next := make([]float64, len(activations[i]))
		for k := range next {
			total := 0.0
			for j, d := range delta {
				total += m.layers[i].weights.At(k, j) * d
			}
			next[k] = total * below.transfer.Derivative(sums[i-1][k], activations[i][k])
		}
		delta = next
	}
	return output, grads
}

// trainIncrement applies one backpropagation update and returns target minus
// the output from before the update.
func (m *MLP) trainIncrement(input, target []float64) ([]float64, error) {
	if len(input) != m.cfg.Layers[0] {
		return nil, errors.Errorf("mlp expects %d attributes, got %d", m.cfg.Layers[0], len(input))
	}
	if outputs := m.cfg.Layers[len(m.cfg.Layers)-1]; len(target) != outputs {
		return nil, errors.Errorf("mlp expects %d targets, got %d", outputs, len(target))
	}
	output, grads := m.gradients(input, target)
	for i := range m.layers {
		l := &m.layers[i]
		var change mat.Dense
		change.Scale(-m.cfg.LearningRate, grads[i])
		change.Add(&change, scaled(m.cfg.Momentum, l.previous))
		l.weights.Add(l.weights, &change)
		l.previous = &change
	}

	residual := make([]float64, len(output))
	for j := range residual {
		residual[j] = target[j] - output[j]
	}
	return residual, nil
}

func scaled(f float64, m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}
