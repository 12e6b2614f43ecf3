package dataset

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty       = errors.New("dataset has no rows")
	ErrRowMismatch = errors.New("input and target row counts differ")
	ErrRagged      = errors.New("rows have different lengths")
	ErrNonFinite   = errors.New("dataset contains a non-finite value")
)

// Dataset pairs an input matrix with a target matrix. Rows are samples.
type Dataset struct {
	Name    string
	Inputs  *mat.Dense
	Targets *mat.Dense
}

// Number is any element type a raw dataset row may hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// FromRows coerces raw rows of any numeric type into a float64 Dataset.
func FromRows[I, T Number](inputs [][]I, targets [][]T) (Dataset, error) {
	in, err := denseFromRows(inputs)
	if err != nil {
		return Dataset{}, errors.Wrap(err, "inputs")
	}
	tar, err := denseFromRows(targets)
	if err != nil {
		return Dataset{}, errors.Wrap(err, "targets")
	}
	return New(in, tar)
}

// New validates and wraps existing matrices.
func New(inputs, targets *mat.Dense) (Dataset, error) {
	data := Dataset{Inputs: inputs, Targets: targets}
	if err := data.Validate(); err != nil {
		return Dataset{}, err
	}
	return data, nil
}

func (d Dataset) Validate() error {
	if d.Inputs == nil || d.Targets == nil {
		return ErrEmpty
	}
	inRows, _ := d.Inputs.Dims()
	tarRows, _ := d.Targets.Dims()
	if inRows == 0 {
		return ErrEmpty
	}
	if inRows != tarRows {
		return errors.Wrapf(ErrRowMismatch, "inputs=%d targets=%d", inRows, tarRows)
	}
	if err := checkFinite(d.Inputs); err != nil {
		return errors.Wrap(err, "inputs")
	}
	if err := checkFinite(d.Targets); err != nil {
		return errors.Wrap(err, "targets")
	}
	return nil
}

func (d Dataset) Len() int {
	rows, _ := d.Inputs.Dims()
	return rows
}

func (d Dataset) Attributes() int {
	_, cols := d.Inputs.Dims()
	return cols
}

func (d Dataset) Outputs() int {
	_, cols := d.Targets.Dims()
	return cols
}

// Row returns copies of the input and target vectors at index i.
func (d Dataset) Row(i int) ([]float64, []float64) {
	return mat.Row(nil, i, d.Inputs), mat.Row(nil, i, d.Targets)
}

func denseFromRows[N Number](rows [][]N) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, errors.New("rows have no columns")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrRagged, "row %d has %d values, want %d", i, len(row), cols)
		}
		for _, v := range row {
			data = append(data, float64(v))
		}
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func checkFinite(m *mat.Dense) error {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrNonFinite, "row %d col %d", i, j)
			}
		}
	}
	return nil
}
