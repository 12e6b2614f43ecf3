package stats

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one error history.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Final float64 `json:"final"`
	// BestIteration is the 1-based position of the lowest error.
	BestIteration int `json:"best_iteration"`
}

func Summarize(history []float64) (Summary, error) {
	if len(history) == 0 {
		return Summary{}, errors.New("error history is empty")
	}
	mean, std := stat.MeanStdDev(history, nil)
	if len(history) == 1 {
		std = 0
	}
	return Summary{
		Count:         len(history),
		Min:           floats.Min(history),
		Max:           floats.Max(history),
		Mean:          mean,
		Std:           std,
		Final:         history[len(history)-1],
		BestIteration: floats.MinIdx(history) + 1,
	}, nil
}

// AverageSeries averages several histories position by position. Shorter
// histories drop out once they run out of values.
func AverageSeries(histories [][]float64) []float64 {
	longest := 0
	for _, h := range histories {
		if len(h) > longest {
			longest = len(h)
		}
	}
	averages := make([]float64, 0, longest)
	for i := 0; i < longest; i++ {
		values := make([]float64, 0, len(histories))
		for _, h := range histories {
			if i < len(h) {
				values = append(values, h[i])
			}
		}
		averages = append(averages, stat.Mean(values, nil))
	}
	return averages
}
