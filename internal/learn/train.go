package learn

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"learning/internal/dataset"
)

// seedError fills a fresh error window with values no real error is close to.
const seedError = 1e10

type Result struct {
	Attempts   int
	Iterations int
	Error      StepError
	Converged  bool
	// History holds every defined step error, across all attempts, in order.
	History []float64
}

// Train fits m to data until an attempt converges or the retries run out.
// Failing to converge is reported in the result, not as an error.
func Train(ctx context.Context, m Model, data dataset.Dataset, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, errors.Wrap(err, "invalid training options")
	}
	if err := data.Validate(); err != nil {
		return Result{}, errors.Wrap(err, "invalid dataset")
	}
	opts = opts.withDefaults()

	hooks := m.Strategy().Hooks()
	if err := runHook(ctx, hooks.PreTrain, data.Inputs, data.Targets); err != nil {
		return Result{}, errors.Wrap(err, "pre-train")
	}
	result, err := trainAttempts(ctx, m, data, opts)
	if postErr := runHook(ctx, hooks.PostTrain, data.Inputs, data.Targets); postErr != nil && err == nil {
		err = errors.Wrap(postErr, "post-train")
	}
	return result, err
}

func trainAttempts(ctx context.Context, m Model, data dataset.Dataset, opts Options) (Result, error) {
	progress := m.TrainingProgress()
	var result Result
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		result.Attempts = attempt + 1
		stepErr, err := trainAttempt(ctx, m, data, opts, attempt, &result.History)
		result.Error = stepErr
		result.Iterations = progress.Iteration
		result.Converged = progress.Converged
		if err != nil {
			return result, err
		}

		opts.Logger.WithFields(logrus.Fields{
			"attempt":    attempt,
			"iterations": progress.Iteration,
			"error":      stepErr.String(),
			"converged":  progress.Converged,
		}).Debug("training attempt finished")

		if attempt >= opts.Retries {
			break
		}
		if stepErr.Defined() {
			avg, err := AvgMSE(m, data)
			if err != nil {
				return result, err
			}
			if avg <= opts.ErrorBreak {
				break
			}
		}
		if err := m.Reset(); err != nil {
			return result, errors.Wrapf(err, "reset before attempt %d", attempt+1)
		}
	}
	return result, nil
}

func trainAttempt(ctx context.Context, m Model, data dataset.Dataset, opts Options, attempt int, history *[]float64) (StepError, error) {
	progress := m.TrainingProgress()
	progress.Iteration = 0
	progress.Converged = false

	strategy := m.Strategy()
	window := newErrorWindow(opts.StagnantDistance)
	best := math.Inf(1)
	bestIteration := 0
	last := NoError

	for iteration := 1; iteration <= opts.Iterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		progress.Iteration = iteration

		inputs, targets, err := opts.Select(data.Inputs, data.Targets)
		if err != nil {
			return last, errors.Wrap(err, "select patterns")
		}
		if err := runHook(ctx, strategy.hooks.PreIteration, inputs, targets); err != nil {
			return last, errors.Wrap(err, "pre-iteration")
		}
		stepErr, err := step(m, strategy, inputs, targets, opts.PostPattern)
		if err != nil {
			return last, errors.Wrapf(err, "iteration %d", iteration)
		}
		if err := runHook(ctx, strategy.hooks.PostIteration, inputs, targets); err != nil {
			return last, errors.Wrap(err, "post-iteration")
		}
		last = stepErr

		if progress.Logging {
			opts.Logger.WithFields(logrus.Fields{
				"iteration": iteration,
				"attempt":   attempt,
				"error":     stepErr.String(),
			}).Info("training iteration")
		}

		if progress.Converged {
			break
		}
		value, ok := stepErr.Value()
		if !ok {
			continue
		}
		*history = append(*history, value)

		if value < opts.ErrorBreak {
			break
		}
		if opts.StagnantThreshold >= 0 && window.allClose(value, opts.StagnantThreshold) {
			break
		}
		if opts.ErrorImproveIters > 0 {
			if value < best {
				best = value
				bestIteration = iteration
			} else if iteration-bestIteration >= opts.ErrorImproveIters {
				break
			}
		}
		window.push(value)
	}
	return last, nil
}

func step(m Model, strategy Strategy, inputs, targets *mat.Dense, callback PatternCallback) (StepError, error) {
	if strategy.Incremental() {
		return trainIncrements(m, strategy.increment, inputs, targets, callback)
	}
	if strategy.step == nil {
		return NoError, errors.New("model strategy has no step function")
	}
	stepErr, err := strategy.step(inputs, targets)
	if err != nil {
		return NoError, err
	}
	if callback != nil {
		rows, _ := inputs.Dims()
		for i := 0; i < rows; i++ {
			callback(m, mat.Row(nil, i, inputs), mat.Row(nil, i, targets))
		}
	}
	return stepErr, nil
}

// TrainStep learns each row of a batch in order with the model's increment
// function. The error is the mean over rows of each residual's mean square,
// or NoError when any pattern had no residual.
func TrainStep(m Model, inputs, targets *mat.Dense, callback PatternCallback) (StepError, error) {
	strategy := m.Strategy()
	if !strategy.Incremental() {
		return NoError, errors.New("model does not learn incrementally")
	}
	return trainIncrements(m, strategy.increment, inputs, targets, callback)
}

func trainIncrements(m Model, increment IncrementFunc, inputs, targets *mat.Dense, callback PatternCallback) (StepError, error) {
	rows, _ := inputs.Dims()
	if targetRows, _ := targets.Dims(); targetRows != rows {
		return NoError, errors.Errorf("batch has %d input rows and %d target rows", rows, targetRows)
	}
	total := 0.0
	defined := true
	for i := 0; i < rows; i++ {
		input := mat.Row(nil, i, inputs)
		target := mat.Row(nil, i, targets)
		residual, err := increment(input, target)
		if err != nil {
			return NoError, errors.Wrapf(err, "pattern %d", i)
		}
		if callback != nil {
			callback(m, input, target)
		}
		if residual == nil {
			defined = false
			continue
		}
		total += meanSquare(residual)
	}
	if !defined || rows == 0 {
		return NoError, nil
	}
	return Err(total / float64(rows)), nil
}

// errorWindow keeps the most recent step errors, oldest first.
type errorWindow struct {
	values []float64
}

func newErrorWindow(size int) *errorWindow {
	values := make([]float64, size)
	for i := range values {
		values[i] = seedError
	}
	return &errorWindow{values: values}
}

func (w *errorWindow) allClose(value, threshold float64) bool {
	for _, v := range w.values {
		if math.Abs(v-value) > threshold {
			return false
		}
	}
	return true
}

func (w *errorWindow) push(value float64) {
	copy(w.values, w.values[1:])
	w.values[len(w.values)-1] = value
}

// Step runs one training step of m on a batch with whatever strategy m uses.
func Step(m Model, inputs, targets *mat.Dense) (StepError, error) {
	return step(m, m.Strategy(), inputs, targets, nil)
}
