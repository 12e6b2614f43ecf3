package learn

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"learning/internal/dataset"
)

// AvgMSE is the mean over rows of each row's mean squared error.
func AvgMSE(m Model, data dataset.Dataset) (float64, error) {
	outputs, err := m.Activate(data.Inputs)
	if err != nil {
		return 0, errors.Wrap(err, "activate")
	}
	outRows, outCols := outputs.Dims()
	tarRows, tarCols := data.Targets.Dims()
	if outRows != tarRows || outCols != tarCols {
		return 0, errors.Errorf("outputs are %dx%d, targets are %dx%d", outRows, outCols, tarRows, tarCols)
	}
	var diff mat.Dense
	diff.Sub(outputs, data.Targets)
	total := 0.0
	for i := 0; i < outRows; i++ {
		total += meanSquare(diff.RawRowView(i))
	}
	return total / float64(outRows), nil
}

// MSE is the mean squared error of a single pattern.
func MSE(m Model, input, target []float64) (float64, error) {
	outputs, err := m.Activate(mat.NewDense(1, len(input), input))
	if err != nil {
		return 0, errors.Wrap(err, "activate")
	}
	_, cols := outputs.Dims()
	if cols != len(target) {
		return 0, errors.Errorf("output has %d values, target has %d", cols, len(target))
	}
	residual := make([]float64, cols)
	for j := range residual {
		residual[j] = outputs.At(0, j) - target[j]
	}
	return meanSquare(residual), nil
}

// WriteComparison prints each target next to the model's output for it.
func WriteComparison(w io.Writer, m Model, data dataset.Dataset) error {
	outputs, err := m.Activate(data.Inputs)
	if err != nil {
		return errors.Wrap(err, "activate")
	}
	for i := 0; i < data.Len(); i++ {
		if _, err := fmt.Fprintf(w, "%v -> %v\n", mat.Row(nil, i, data.Targets), mat.Row(nil, i, outputs)); err != nil {
			return err
		}
	}
	return nil
}

func meanSquare(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v * v
	}
	return total / float64(len(values))
}
