package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussianKernel maps distances to similarities exp(-d^2/variance), element-wise.
func GaussianKernel(distances mat.Matrix, variance float64) *mat.Dense {
	rows, cols := distances.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, _ int, d float64) float64 {
		return math.Exp(-(d * d) / variance)
	}, distances)
	return out
}

// Apply runs transfer element-wise over m into a new matrix.
func Apply(transfer Transfer, m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return transfer.Func(v)
	}, m)
	return out
}
