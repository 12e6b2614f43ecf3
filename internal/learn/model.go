// Package learn holds the model capability set and the generic training loop
// shared by every model family.
package learn

import (
	"context"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// StepError is the error signal of one training step. A step may produce no
// signal at all, which is distinct from an error of zero.
type StepError struct {
	value   float64
	defined bool
}

// NoError marks a step that produced no error signal.
var NoError = StepError{}

func Err(value float64) StepError {
	return StepError{value: value, defined: true}
}

func (e StepError) Value() (float64, bool) {
	return e.value, e.defined
}

func (e StepError) Defined() bool {
	return e.defined
}

func (e StepError) String() string {
	if !e.defined {
		return "none"
	}
	return strconv.FormatFloat(e.value, 'g', 6, 64)
}

// Progress is the bookkeeping every model carries. Embed it to satisfy the
// TrainingProgress part of Model.
type Progress struct {
	Iteration int
	Converged bool
	Logging   bool
}

func (p *Progress) TrainingProgress() *Progress {
	return p
}

type Model interface {
	Activate(inputs *mat.Dense) (*mat.Dense, error)
	Reset() error
	TrainingProgress() *Progress
	Strategy() Strategy
}

// StepFunc trains a model on a whole batch.
type StepFunc func(inputs, targets *mat.Dense) (StepError, error)

// IncrementFunc trains a model on one pattern and returns its residual.
// A nil residual means the model has no error signal for the pattern.
type IncrementFunc func(input, target []float64) ([]float64, error)

type HookFunc func(ctx context.Context, inputs, targets *mat.Dense) error

type Hooks struct {
	PreTrain      HookFunc
	PostTrain     HookFunc
	PreIteration  HookFunc
	PostIteration HookFunc
}

// Strategy is how a model learns a batch. It is fixed when the model is built.
type Strategy struct {
	step      StepFunc
	increment IncrementFunc
	hooks     Hooks
}

func BatchStrategy(step StepFunc, hooks Hooks) Strategy {
	return Strategy{step: step, hooks: hooks}
}

func IncrementalStrategy(increment IncrementFunc, hooks Hooks) Strategy {
	return Strategy{increment: increment, hooks: hooks}
}

func (s Strategy) Incremental() bool {
	return s.increment != nil
}

func (s Strategy) Hooks() Hooks {
	return s.hooks
}

// PatternCallback runs after each pattern is learned.
type PatternCallback func(m Model, input, target []float64)

func runHook(ctx context.Context, hook HookFunc, inputs, targets *mat.Dense) error {
	if hook == nil {
		return nil
	}
	return hook(ctx, inputs, targets)
}
