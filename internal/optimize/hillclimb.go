package optimize

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// HillClimb is an objective-only optimizer. Each Next call perturbs random
// coordinates of the best known parameters Candidates times and keeps the best
// candidate that improves by more than MinImprovement. The perturbation spread
// shrinks by AnnealingFactor per perturbation step.
type HillClimb struct {
	Rand              *rand.Rand
	Candidates        int
	Steps             int
	StepSize          float64
	PerturbationRange float64
	AnnealingFactor   float64
	MinImprovement    float64
}

func NewHillClimb(rng *rand.Rand) *HillClimb {
	return &HillClimb{
		Rand:              rng,
		Candidates:        8,
		Steps:             4,
		StepSize:          0.35,
		PerturbationRange: 1.0,
		AnnealingFactor:   1.0,
	}
}

func (*HillClimb) Name() string { return NameHillClimb }

func (h *HillClimb) Next(problem Problem, params []float64) (float64, []float64, error) {
	if err := h.validate(); err != nil {
		return 0, nil, err
	}
	value, err := problem.Objective(params)
	if err != nil {
		return 0, nil, err
	}
	if len(params) == 0 {
		return value, nil, nil
	}

	perturbationRange := h.PerturbationRange
	if perturbationRange == 0 {
		perturbationRange = 1.0
	}
	annealingFactor := h.AnnealingFactor
	if annealingFactor == 0 {
		annealingFactor = 1.0
	}

	best := append([]float64(nil), params...)
	bestValue := value
	for c := 0; c < h.Candidates; c++ {
		candidate := h.perturb(best, perturbationRange, annealingFactor)
		candidateValue, err := problem.Objective(candidate)
		if err != nil {
			return 0, nil, err
		}
		if candidateValue < bestValue-h.MinImprovement {
			best = candidate
			bestValue = candidateValue
		}
	}
	return value, best, nil
}

func (h *HillClimb) validate() error {
	if h == nil || h.Rand == nil {
		return errors.New("random source is required")
	}
	if h.Candidates <= 0 {
		return errors.New("candidates must be > 0")
	}
	if h.Steps <= 0 {
		return errors.New("steps must be > 0")
	}
	if h.StepSize <= 0 {
		return errors.New("step size must be > 0")
	}
	if h.PerturbationRange < 0 {
		return errors.New("perturbation range must be >= 0")
	}
	if h.AnnealingFactor < 0 {
		return errors.New("annealing factor must be >= 0")
	}
	if h.MinImprovement < 0 {
		return errors.New("min improvement must be >= 0")
	}
	return nil
}

func (h *HillClimb) perturb(base []float64, perturbationRange, annealingFactor float64) []float64 {
	candidate := append([]float64(nil), base...)
	for s := 0; s < h.Steps; s++ {
		idx := h.Rand.Intn(len(candidate))
		spread := h.StepSize * perturbationRange * math.Pow(annealingFactor, float64(s))
		candidate[idx] += (h.Rand.Float64()*2 - 1) * spread
	}
	return candidate
}

// Jacobian is always nil; hill climbing never evaluates a gradient.
func (*HillClimb) Jacobian() []float64 { return nil }

func (*HillClimb) Reset() {}
