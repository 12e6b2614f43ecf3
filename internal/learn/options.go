package learn

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"learning/internal/selection"
)

type Options struct {
	Iterations int
	Retries    int
	// ErrorBreak ends an attempt once the step error drops below it.
	ErrorBreak float64
	// StagnantDistance is how many recent errors the current error is compared to.
	StagnantDistance int
	// StagnantThreshold below zero disables the stagnation check.
	StagnantThreshold float64
	// ErrorImproveIters ends an attempt when the best error has not improved for
	// that many iterations. Zero disables it.
	ErrorImproveIters int
	Select            selection.Func
	PostPattern       PatternCallback
	Logger            logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		Iterations:        1000,
		Retries:           0,
		ErrorBreak:        0.002,
		StagnantDistance:  5,
		StagnantThreshold: 1e-5,
		Select:            selection.Iterative,
		Logger:            logrus.StandardLogger(),
	}
}

func (o Options) Validate() error {
	if o.Iterations < 1 {
		return errors.New("iterations must be > 0")
	}
	if o.Retries < 0 {
		return errors.New("retries must be >= 0")
	}
	if o.StagnantDistance < 1 {
		return errors.New("stagnant distance must be > 0")
	}
	if o.ErrorImproveIters < 0 {
		return errors.New("error improve iterations must be >= 0")
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Select == nil {
		o.Select = selection.Iterative
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}
