// Package optimize holds the stateful iterative optimizers models train their
// parameter vectors with.
//
// An optimizer is asked for one step at a time: Next evaluates the problem at the
// given parameters and proposes the next parameter vector. Optimizers that use a
// gradient expose the last one through Jacobian so callers can test convergence.
package optimize

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const (
	NameAuto            = "auto"
	NameBFGS            = "bfgs"
	NameSteepestDescent = "steepest_descent"
	NameHillClimb       = "hill_climb"

	// Problems up to this many parameters get a dense quasi-Newton optimizer.
	maxBFGSParameters = 2500

	armijoConstant = 1e-4
	maxBacktracks  = 40
	maxStepSize    = 1e3
)

type Optimizer interface {
	Name() string
	// Next returns the objective at params and the proposed next parameters.
	// params is not modified.
	Next(problem Problem, params []float64) (float64, []float64, error)
	// Jacobian returns the gradient seen by the last Next call, or nil when the
	// optimizer does not use one.
	Jacobian() []float64
	Reset()
}

// MakeOptimizer returns a general purpose optimizer sized for numParams parameters.
func MakeOptimizer(numParams int) Optimizer {
	if numParams <= maxBFGSParameters {
		return NewBFGS()
	}
	return NewSteepestDescent()
}

// FromName builds an optimizer from its config name. rng is only needed by
// hill_climb.
func FromName(name string, numParams int, rng *rand.Rand) (Optimizer, error) {
	switch NormalizeName(name) {
	case NameAuto:
		return MakeOptimizer(numParams), nil
	case NameBFGS:
		return NewBFGS(), nil
	case NameSteepestDescent:
		return NewSteepestDescent(), nil
	case NameHillClimb:
		if rng == nil {
			return nil, errors.New("random source is required")
		}
		return NewHillClimb(rng), nil
	default:
		return nil, errors.Errorf("unsupported optimizer: %s", name)
	}
}

func NormalizeName(name string) string {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", NameAuto:
		return NameAuto
	case NameBFGS:
		return NameBFGS
	case NameSteepestDescent, "gradient_descent", "sd":
		return NameSteepestDescent
	case NameHillClimb, "hillclimb":
		return NameHillClimb
	default:
		return name
	}
}

// backtrack finds a step along dir satisfying the Armijo sufficient decrease
// condition, starting from start and halving. It returns 0 when dir is not a
// descent direction or no acceptable step exists.
func backtrack(problem Problem, x []float64, fx float64, grad, dir []float64, start float64) (float64, error) {
	slope := floats.Dot(grad, dir)
	if !(slope < 0) {
		return 0, nil
	}
	candidate := make([]float64, len(x))
	step := start
	for i := 0; i < maxBacktracks; i++ {
		floats.AddScaledTo(candidate, x, step, dir)
		value, err := problem.Objective(candidate)
		if err != nil {
			return 0, err
		}
		if value <= fx+armijoConstant*step*slope {
			return step, nil
		}
		step *= 0.5
	}
	return 0, nil
}

func stepped(x []float64, step float64, dir []float64) []float64 {
	out := make([]float64, len(x))
	floats.AddScaledTo(out, x, step, dir)
	return out
}

func negated(v []float64) []float64 {
	out := append([]float64(nil), v...)
	floats.Scale(-1, out)
	return out
}
