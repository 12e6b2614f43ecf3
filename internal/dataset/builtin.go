package dataset

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// XOR returns the four-pattern exclusive-or dataset.
func XOR() Dataset {
	return Dataset{
		Name: "xor",
		Inputs: mat.NewDense(4, 2, []float64{
			0, 0,
			0, 1,
			1, 0,
			1, 1,
		}),
		Targets: mat.NewDense(4, 1, []float64{
			0,
			1,
			1,
			0,
		}),
	}
}

// Sine samples y = sin(x) on [-pi, pi] at evenly spaced points.
func Sine(samples int) (Dataset, error) {
	if samples < 2 {
		return Dataset{}, errors.Errorf("sine dataset needs at least 2 samples, got %d", samples)
	}
	inputs := mat.NewDense(samples, 1, nil)
	targets := mat.NewDense(samples, 1, nil)
	step := 2 * math.Pi / float64(samples-1)
	for i := 0; i < samples; i++ {
		x := -math.Pi + float64(i)*step
		inputs.Set(i, 0, x)
		targets.Set(i, 0, math.Sin(x))
	}
	return Dataset{Name: "sine", Inputs: inputs, Targets: targets}, nil
}

// RandomClassification returns uniformly random attributes in [-1, 1] with one-hot
// targets drawn uniformly from classes.
func RandomClassification(rng *rand.Rand, samples, attributes, classes int) (Dataset, error) {
	if rng == nil {
		return Dataset{}, errors.New("random source is required")
	}
	if samples <= 0 || attributes <= 0 || classes <= 0 {
		return Dataset{}, errors.Errorf("invalid random classification shape: samples=%d attributes=%d classes=%d", samples, attributes, classes)
	}
	inputs := mat.NewDense(samples, attributes, nil)
	targets := mat.NewDense(samples, classes, nil)
	for i := 0; i < samples; i++ {
		for j := 0; j < attributes; j++ {
			inputs.Set(i, j, rng.Float64()*2-1)
		}
		targets.Set(i, rng.Intn(classes), 1)
	}
	return Dataset{Name: "random_classification", Inputs: inputs, Targets: targets}, nil
}

var builtins = map[string]func(rng *rand.Rand) (Dataset, error){
	"xor": func(*rand.Rand) (Dataset, error) { return XOR(), nil },
	"sine": func(*rand.Rand) (Dataset, error) {
		return Sine(32)
	},
	"random_classification": func(rng *rand.Rand) (Dataset, error) {
		return RandomClassification(rng, 100, 2, 2)
	},
}

// Builtin returns a named built-in dataset.
func Builtin(name string, rng *rand.Rand) (Dataset, error) {
	build, ok := builtins[strings.TrimSpace(strings.ToLower(name))]
	if !ok {
		return Dataset{}, errors.Errorf("unknown dataset: %s", name)
	}
	return build(rng)
}

func ListBuiltins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
