// Package selection picks the rows a training iteration learns from.
//
// Every strategy is pure: the returned matrices are either the untouched inputs
// (Iterative) or freshly allocated copies, and inputs and targets are always indexed
// by the same row sequence.
package selection

import (
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var ErrSampleSize = errors.New("invalid sample size")

// Func selects a batch of patterns from a dataset pair.
type Func func(inputs, targets *mat.Dense) (*mat.Dense, *mat.Dense, error)

// Iterative returns all rows in order.
func Iterative(inputs, targets *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	return inputs, targets, nil
}

// Sample draws size distinct rows without replacement, in draw order.
// A size of 0 selects every row, which shuffles the dataset.
func Sample(rng *rand.Rand, size int) Func {
	return func(inputs, targets *mat.Dense) (*mat.Dense, *mat.Dense, error) {
		rows, err := matchedRows(inputs, targets)
		if err != nil {
			return nil, nil, err
		}
		n := size
		if n == 0 {
			n = rows
		}
		if n < 0 || n > rows {
			return nil, nil, errors.Wrapf(ErrSampleSize, "sample %d of %d rows without replacement", n, rows)
		}
		indices := rng.Perm(rows)[:n]
		return pick(inputs, indices), pick(targets, indices), nil
	}
}

// Random draws size rows with replacement. A size of 0 draws one row per dataset row.
func Random(rng *rand.Rand, size int) Func {
	return func(inputs, targets *mat.Dense) (*mat.Dense, *mat.Dense, error) {
		rows, err := matchedRows(inputs, targets)
		if err != nil {
			return nil, nil, err
		}
		n := size
		if n == 0 {
			n = rows
		}
		if n < 0 {
			return nil, nil, errors.Wrapf(ErrSampleSize, "draw %d rows", n)
		}
		indices := make([]int, n)
		for i := range indices {
			indices[i] = rng.Intn(rows)
		}
		return pick(inputs, indices), pick(targets, indices), nil
	}
}

// HeuristicSize returns a mini-batch size for a dataset of rows samples:
// every row for small datasets, 20*ln(rows) otherwise.
func HeuristicSize(rows int) int {
	if rows < 20 {
		return rows
	}
	size := int(20 * math.Log(float64(rows)))
	if size > rows {
		return rows
	}
	return size
}

// FromName builds a selection strategy from its config name.
// A negative size resolves to HeuristicSize at selection time.
func FromName(name string, rng *rand.Rand, size int) (Func, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "iterative":
		return Iterative, nil
	case "sample", "random":
		if rng == nil {
			return nil, errors.New("random source is required")
		}
	default:
		return nil, errors.Errorf("unsupported pattern selection: %s", name)
	}

	build := Sample
	if strings.TrimSpace(strings.ToLower(name)) == "random" {
		build = Random
	}
	if size >= 0 {
		return build(rng, size), nil
	}
	return func(inputs, targets *mat.Dense) (*mat.Dense, *mat.Dense, error) {
		rows, _ := inputs.Dims()
		return build(rng, HeuristicSize(rows))(inputs, targets)
	}, nil
}

func matchedRows(inputs, targets *mat.Dense) (int, error) {
	inRows, _ := inputs.Dims()
	tarRows, _ := targets.Dims()
	if inRows != tarRows {
		return 0, errors.Errorf("input rows %d do not match target rows %d", inRows, tarRows)
	}
	if inRows == 0 {
		return 0, errors.New("no rows to select from")
	}
	return inRows, nil
}

func pick(m *mat.Dense, indices []int) *mat.Dense {
	_, cols := m.Dims()
	if len(indices) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(indices), cols, nil)
	for i, row := range indices {
		out.SetRow(i, m.RawRowView(row))
	}
	return out
}
