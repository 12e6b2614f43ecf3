// Package som implements a one-dimensional self-organizing map. Its activation
// is the Euclidean distance from each pattern to each neuron.
package som

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"learning/internal/codec"
	"learning/internal/learn"
)

const Kind = "som"

type Config struct {
	Attributes int `json:"attributes"`
	Neurons    int `json:"neurons"`
	// MoveRate is how far the winning neuron moves toward a pattern.
	MoveRate float64 `json:"move_rate"`
	// Neighborhood is how many grid steps from the winner also move.
	Neighborhood int `json:"neighborhood"`
	// NeighborMoveRate scales MoveRate for neighbors of the winner.
	NeighborMoveRate    float64 `json:"neighbor_move_rate"`
	InitialWeightsRange float64 `json:"initial_weights_range"`
	Seed                int64   `json:"seed"`
	Logging             bool    `json:"logging"`
}

func DefaultConfig(attributes, neurons int) Config {
	return Config{
		Attributes:          attributes,
		Neurons:             neurons,
		MoveRate:            0.1,
		Neighborhood:        2,
		NeighborMoveRate:    1.0,
		InitialWeightsRange: 1.0,
		Seed:                1,
	}
}

func (c Config) Validate() error {
	if c.Attributes <= 0 {
		return errors.New("attributes must be > 0")
	}
	if c.Neurons <= 0 {
		return errors.New("neurons must be > 0")
	}
	if c.MoveRate <= 0 {
		return errors.New("move rate must be > 0")
	}
	if c.Neighborhood < 0 {
		return errors.New("neighborhood must be >= 0")
	}
	if c.NeighborMoveRate < 0 {
		return errors.New("neighbor move rate must be >= 0")
	}
	if c.InitialWeightsRange < 0 {
		return errors.New("initial weights range must be >= 0")
	}
	return nil
}

type SOM struct {
	learn.Progress

	cfg     Config
	rng     *rand.Rand
	weights *mat.Dense // neurons x attributes
	// draws counts values taken from rng, so a restored map can resume it.
	draws int
}

func New(cfg Config) (*SOM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid som config")
	}
	s := &SOM{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	s.Logging = cfg.Logging
	s.randomizeWeights()
	return s, nil
}

func (s *SOM) Config() Config {
	return s.cfg
}

// Weights returns a copy of the neuron weight matrix.
func (s *SOM) Weights() *mat.Dense {
	return mat.DenseCopyOf(s.weights)
}

func (s *SOM) Reset() error {
	s.Iteration = 0
	s.Converged = false
	s.randomizeWeights()
	return nil
}

func (s *SOM) randomizeWeights() {
	data := make([]float64, s.cfg.Neurons*s.cfg.Attributes)
	for i := range data {
		data[i] = (2*s.rng.Float64() - 1) * s.cfg.InitialWeightsRange
	}
	s.draws += len(data)
	s.weights = mat.NewDense(s.cfg.Neurons, s.cfg.Attributes, data)
}

// Activate returns the distance from each input row to each neuron.
func (s *SOM) Activate(inputs *mat.Dense) (*mat.Dense, error) {
	rows, cols := inputs.Dims()
	if cols != s.cfg.Attributes {
		return nil, errors.Errorf("som expects %d attributes, got %d", s.cfg.Attributes, cols)
	}
	out := mat.NewDense(rows, s.cfg.Neurons, nil)
	for i := 0; i < rows; i++ {
		pattern := inputs.RawRowView(i)
		for n := 0; n < s.cfg.Neurons; n++ {
			out.Set(i, n, floats.Distance(pattern, s.weights.RawRowView(n), 2))
		}
	}
	return out, nil
}

func (s *SOM) Strategy() learn.Strategy {
	return learn.IncrementalStrategy(s.trainIncrement, learn.Hooks{})
}

// trainIncrement pulls the closest neuron and its grid neighbors toward the
// pattern. A map has no error signal, so the residual is always nil.
func (s *SOM) trainIncrement(input, _ []float64) ([]float64, error) {
	if len(input) != s.cfg.Attributes {
		return nil, errors.Errorf("som expects %d attributes, got %d", s.cfg.Attributes, len(input))
	}
	winner := s.closest(input)
	s.move(winner, input, s.cfg.MoveRate)

	neighborRate := s.cfg.MoveRate * s.cfg.NeighborMoveRate
	for n := winner - s.cfg.Neighborhood; n <= winner+s.cfg.Neighborhood; n++ {
		if n == winner || n < 0 || n >= s.cfg.Neurons {
			continue
		}
		s.move(n, input, neighborRate)
	}
	return nil, nil
}

func (s *SOM) closest(input []float64) int {
	winner := 0
	best := math.Inf(1)
	for n := 0; n < s.cfg.Neurons; n++ {
		if d := floats.Distance(input, s.weights.RawRowView(n), 2); d < best {
			best = d
			winner = n
		}
	}
	return winner
}

func (s *SOM) move(neuron int, input []float64, rate float64) {
	row := s.weights.RawRowView(neuron)
	for j := range row {
		row[j] += rate * (input[j] - row[j])
	}
}

type state struct {
	Config    Config    `json:"config"`
	Weights   []float64 `json:"weights"`
	Iteration int       `json:"iteration"`
	Converged bool      `json:"converged"`
	Logging   bool      `json:"logging"`
	Draws     int       `json:"draws"`
}

// Serialize keeps the number of random draws so a restored map's next Reset
// matches the original's.
func (s *SOM) Serialize() (string, error) {
	return codec.Encode(Kind, state{
		Config:    s.cfg,
		Weights:   append([]float64(nil), s.weights.RawMatrix().Data...),
		Iteration: s.Iteration,
		Converged: s.Converged,
		Logging:   s.Logging,
		Draws:     s.draws,
	})
}

func Unserialize(blob string) (*SOM, error) {
	var st state
	if err := codec.Decode(blob, Kind, &st); err != nil {
		return nil, err
	}
	s, err := New(st.Config)
	if err != nil {
		return nil, err
	}
	if len(st.Weights) != st.Config.Neurons*st.Config.Attributes {
		return nil, errors.Wrapf(codec.ErrMalformed, "som has %d weights, want %d", len(st.Weights), st.Config.Neurons*st.Config.Attributes)
	}
	for ; s.draws < st.Draws; s.draws++ {
		s.rng.Float64()
	}
	s.weights = mat.NewDense(st.Config.Neurons, st.Config.Attributes, st.Weights)
	s.Iteration = st.Iteration
	s.Converged = st.Converged
	s.Logging = st.Logging
	return s, nil
}
