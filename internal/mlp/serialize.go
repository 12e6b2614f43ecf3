package mlp

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"learning/internal/codec"
)

type state struct {
	Layers              []int       `json:"layers"`
	Transfers           []string    `json:"transfers"`
	LearningRate        float64     `json:"learning_rate"`
	Momentum            float64     `json:"momentum"`
	InitialWeightsRange float64     `json:"initial_weights_range"`
	Seed                int64       `json:"seed"`
	Weights             [][]float64 `json:"weights"`
	Iteration           int         `json:"iteration"`
	Converged           bool        `json:"converged"`
	Logging             bool        `json:"logging"`
	Draws               int         `json:"draws"`
}

// Serialize encodes the network weights. Momentum history is not kept; the
// number of weight draws is, so a restored network's next Reset matches the
// original's.
func (m *MLP) Serialize() (string, error) {
	weights := make([][]float64, len(m.layers))
	for i, l := range m.layers {
		weights[i] = append([]float64(nil), l.weights.RawMatrix().Data...)
	}
	return codec.Encode(Kind, state{
		Layers:              m.cfg.Layers,
		Transfers:           m.cfg.Transfers,
		LearningRate:        m.cfg.LearningRate,
		Momentum:            m.cfg.Momentum,
		InitialWeightsRange: m.cfg.InitialWeightsRange,
		Seed:                m.cfg.Seed,
		Weights:             weights,
		Iteration:           m.Iteration,
		Converged:           m.Converged,
		Logging:             m.Logging,
		Draws:               m.draws,
	})
}

func Unserialize(blob string) (*MLP, error) {
	var st state
	if err := codec.Decode(blob, Kind, &st); err != nil {
		return nil, err
	}
	m, err := New(Config{
		Layers:              st.Layers,
		Transfers:           st.Transfers,
		LearningRate:        st.LearningRate,
		Momentum:            st.Momentum,
		InitialWeightsRange: st.InitialWeightsRange,
		Seed:                st.Seed,
	})
	if err != nil {
		return nil, err
	}
	if len(st.Weights) != len(m.layers) {
		return nil, errors.Wrapf(codec.ErrMalformed, "mlp has %d weight layers, want %d", len(st.Weights), len(m.layers))
	}
	for i := range m.layers {
		rows, cols := m.layers[i].weights.Dims()
		if len(st.Weights[i]) != rows*cols {
			return nil, errors.Wrapf(codec.ErrMalformed, "layer %d has %d weights, want %d", i+1, len(st.Weights[i]), rows*cols)
		}
		m.layers[i].weights = mat.NewDense(rows, cols, st.Weights[i])
	}
	for ; m.draws < st.Draws; m.draws++ {
		m.rng.Float64()
	}
	m.Iteration = st.Iteration
	m.Converged = st.Converged
	m.Logging = st.Logging
	return m, nil
}
