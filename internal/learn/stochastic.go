package learn

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"learning/internal/dataset"
	"learning/internal/selection"
)

// StochasticOptions trains on one mini-batch per round. Training applies to
// each round; ErrorBreak is checked against the whole dataset.
type StochasticOptions struct {
	Training   Options
	Rounds     int
	ErrorBreak float64
	// BatchSize below zero picks selection.HeuristicSize.
	BatchSize int
	Rand      *rand.Rand
}

type StochasticResult struct {
	Rounds int
	AvgMSE float64
	// History holds the dataset error after each round.
	History []float64
}

func DefaultStochasticOptions(rng *rand.Rand) StochasticOptions {
	training := DefaultOptions()
	training.Iterations = 5
	training.ErrorBreak = 0.1
	return StochasticOptions{
		Training:   training,
		Rounds:     200,
		ErrorBreak: 0.02,
		BatchSize:  -1,
		Rand:       rng,
	}
}

func StochasticTrain(ctx context.Context, m Model, data dataset.Dataset, opts StochasticOptions) (StochasticResult, error) {
	if opts.Rounds < 1 {
		return StochasticResult{}, errors.New("rounds must be > 0")
	}
	if opts.Rand == nil {
		return StochasticResult{}, errors.New("random source is required")
	}
	if err := data.Validate(); err != nil {
		return StochasticResult{}, errors.Wrap(err, "invalid dataset")
	}
	size := opts.BatchSize
	if size < 0 {
		size = selection.HeuristicSize(data.Len())
	}
	pick := selection.Sample(opts.Rand, size)
	logger := opts.Training.withDefaults().Logger

	var result StochasticResult
	for round := 1; round <= opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		inputs, targets, err := pick(data.Inputs, data.Targets)
		if err != nil {
			return result, errors.Wrap(err, "select mini-batch")
		}
		if _, err := Train(ctx, m, dataset.Dataset{Name: data.Name, Inputs: inputs, Targets: targets}, opts.Training); err != nil {
			return result, errors.Wrapf(err, "round %d", round)
		}
		avg, err := AvgMSE(m, data)
		if err != nil {
			return result, err
		}
		result.Rounds = round
		result.AvgMSE = avg
		result.History = append(result.History, avg)
		logger.WithFields(logrus.Fields{"round": round, "avg_mse": avg}).Debug("stochastic round finished")
		if avg <= opts.ErrorBreak {
			break
		}
	}
	return result, nil
}
