package errfunc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const probabilityFloor = 1e-12

var ErrShapeMismatch = errors.New("output and target shapes differ")

// Func scores model outputs against targets and differentiates that score with
// respect to the outputs.
type Func interface {
	Name() string
	Error(output, target *mat.Dense) (float64, error)
	Derivative(output, target *mat.Dense) (float64, *mat.Dense, error)
}

// MeanSquaredError is mean((output-target)^2) over every element.
type MeanSquaredError struct{}

func (MeanSquaredError) Name() string { return "mse" }

func (MeanSquaredError) Error(output, target *mat.Dense) (float64, error) {
	diff, err := difference(output, target)
	if err != nil {
		return 0, err
	}
	return meanSquares(diff), nil
}

func (MeanSquaredError) Derivative(output, target *mat.Dense) (float64, *mat.Dense, error) {
	diff, err := difference(output, target)
	if err != nil {
		return 0, nil, err
	}
	rows, cols := diff.Dims()
	mse := meanSquares(diff)
	diff.Scale(2/float64(rows*cols), diff)
	return mse, diff, nil
}

// CrossEntropyError is -sum(target*ln(output)) averaged over rows. Outputs are
// floored at a small positive value before the log.
type CrossEntropyError struct{}

func (CrossEntropyError) Name() string { return "cross_entropy" }

func (CrossEntropyError) Error(output, target *mat.Dense) (float64, error) {
	if err := sameShape(output, target); err != nil {
		return 0, err
	}
	rows, cols := output.Dims()
	total := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			total -= target.At(i, j) * math.Log(floor(output.At(i, j)))
		}
	}
	return total / float64(rows), nil
}

func (c CrossEntropyError) Derivative(output, target *mat.Dense) (float64, *mat.Dense, error) {
	value, err := c.Error(output, target)
	if err != nil {
		return 0, nil, err
	}
	rows, cols := output.Dims()
	grad := mat.NewDense(rows, cols, nil)
	scale := 1 / float64(rows)
	grad.Apply(func(i, j int, _ float64) float64 {
		return -target.At(i, j) / floor(output.At(i, j)) * scale
	}, grad)
	return value, grad, nil
}

func floor(v float64) float64 {
	if v < probabilityFloor {
		return probabilityFloor
	}
	return v
}

func difference(output, target *mat.Dense) (*mat.Dense, error) {
	if err := sameShape(output, target); err != nil {
		return nil, err
	}
	var diff mat.Dense
	diff.Sub(output, target)
	return &diff, nil
}

func sameShape(output, target *mat.Dense) error {
	or, oc := output.Dims()
	tr, tc := target.Dims()
	if or != tr || oc != tc {
		return errors.Wrapf(ErrShapeMismatch, "output=%dx%d target=%dx%d", or, oc, tr, tc)
	}
	if or == 0 || oc == 0 {
		return errors.New("empty output")
	}
	return nil
}

func meanSquares(m *mat.Dense) float64 {
	rows, cols := m.Dims()
	sum := 0.0
	for i := 0; i < rows; i++ {
		for _, v := range m.RawRowView(i) {
			sum += v * v
		}
	}
	return sum / float64(rows*cols)
}
