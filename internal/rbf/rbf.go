// Package rbf implements a radial basis function network: a clustering model
// places centers in input space, a Gaussian turns distances to those centers
// into similarities, and a linear layer maps similarities to outputs.
package rbf

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"learning/internal/dataset"
	"learning/internal/errfunc"
	"learning/internal/learn"
	"learning/internal/nn"
	"learning/internal/optimize"
	"learning/internal/som"
)

const (
	Kind = "rbf"

	initialWeightsRange = 0.25
)

// Clusterer is the model that places centers. Its activation must be the
// distance from each pattern to each of the network's clusters.
type Clusterer interface {
	learn.Model
	Serialize() (string, error)
}

type Config struct {
	Attributes int
	Clusters   int
	Outputs    int
	// Optimizer defaults to optimize.MakeOptimizer(Clusters*Outputs).
	Optimizer optimize.Optimizer
	// ErrorFunc defaults to mean squared error.
	ErrorFunc errfunc.Func
	// JacobianNormBreak marks the network converged once the optimizer's
	// gradient norm drops below it.
	JacobianNormBreak float64
	// Variance of the Gaussian. Zero means 4/Clusters.
	Variance          float64
	ScaleBySimilarity bool
	// Clustering defaults to a SOM with one neuron per cluster.
	Clustering Clusterer
	// ClusterIncrementally trains the clustering model one step before every
	// network step instead of fully before training starts.
	ClusterIncrementally bool
	ClusterTraining      learn.Options
	Seed                 int64
	Logging              bool
}

func DefaultConfig(attributes, clusters, outputs int) Config {
	return Config{
		Attributes:        attributes,
		Clusters:          clusters,
		Outputs:           outputs,
		JacobianNormBreak: 1e-10,
		ScaleBySimilarity: true,
		ClusterTraining:   learn.DefaultOptions(),
		Seed:              1,
	}
}

func (c Config) Validate() error {
	if c.Attributes <= 0 {
		return errors.New("attributes must be > 0")
	}
	if c.Clusters <= 0 {
		return errors.New("clusters must be > 0")
	}
	if c.Outputs <= 0 {
		return errors.New("outputs must be > 0")
	}
	if c.Variance < 0 {
		return errors.New("variance must be > 0")
	}
	if c.JacobianNormBreak < 0 {
		return errors.New("jacobian norm break must be >= 0")
	}
	if !c.ClusterIncrementally && c.ClusterTraining.Iterations != 0 {
		if err := c.ClusterTraining.Validate(); err != nil {
			return errors.Wrap(err, "cluster training")
		}
	}
	return nil
}

type RBF struct {
	learn.Progress

	cfg     Config
	rng     *rand.Rand
	weights *mat.Dense // clusters x outputs
	bias    []float64
	// draws counts values taken from rng, so a restored network can resume it.
	draws int
}

func New(cfg Config) (*RBF, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid rbf config")
	}
	if cfg.Variance == 0 {
		cfg.Variance = 4.0 / float64(cfg.Clusters)
	}
	if cfg.ClusterTraining.Iterations == 0 {
		cfg.ClusterTraining = learn.DefaultOptions()
	}
	if cfg.Clustering == nil {
		clustering, err := som.New(som.Config{
			Attributes:          cfg.Attributes,
			Neurons:             cfg.Clusters,
			MoveRate:            0.1,
			Neighborhood:        2,
			NeighborMoveRate:    1.0,
			InitialWeightsRange: 1.0,
			Seed:                cfg.Seed + 1,
		})
		if err != nil {
			return nil, errors.Wrap(err, "default clustering")
		}
		cfg.Clustering = clustering
	}
	if cfg.Optimizer == nil {
		cfg.Optimizer = optimize.MakeOptimizer(cfg.Clusters * cfg.Outputs)
	}
	if cfg.ErrorFunc == nil {
		cfg.ErrorFunc = errfunc.MeanSquaredError{}
	}

	r := &RBF{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	r.Logging = cfg.Logging
	r.randomizeParameters()
	return r, nil
}

func (r *RBF) Config() Config {
	return r.cfg
}

func (r *RBF) randomizeParameters() {
	data := make([]float64, r.cfg.Clusters*r.cfg.Outputs)
	for i := range data {
		data[i] = r.randomWeight()
	}
	r.weights = mat.NewDense(r.cfg.Clusters, r.cfg.Outputs, data)
	r.bias = make([]float64, r.cfg.Outputs)
	for i := range r.bias {
		r.bias[i] = r.randomWeight()
	}
}

func (r *RBF) randomWeight() float64 {
	r.draws++
	return (2*r.rng.Float64() - 1) * initialWeightsRange
}

func (r *RBF) Reset() error {
	r.Iteration = 0
	r.Converged = false
	if err := r.cfg.Clustering.Reset(); err != nil {
		return errors.Wrap(err, "reset clustering")
	}
	r.cfg.Optimizer.Reset()
	r.randomizeParameters()
	return nil
}

// Parameters returns copies of the output weights and bias.
func (r *RBF) Parameters() (*mat.Dense, []float64) {
	return mat.DenseCopyOf(r.weights), append([]float64(nil), r.bias...)
}

func (r *RBF) SetParameters(weights *mat.Dense, bias []float64) error {
	rows, cols := weights.Dims()
	if rows != r.cfg.Clusters || cols != r.cfg.Outputs {
		return errors.Errorf("weights must be %dx%d, got %dx%d", r.cfg.Clusters, r.cfg.Outputs, rows, cols)
	}
	if len(bias) != r.cfg.Outputs {
		return errors.Errorf("bias must have %d values, got %d", r.cfg.Outputs, len(bias))
	}
	r.weights = mat.DenseCopyOf(weights)
	r.bias = append([]float64(nil), bias...)
	return nil
}

// Similarity returns the Gaussian similarity of each input row to each cluster.
// When scaling, each row sums to one, and a row with no similarity at all
// becomes uniform.
func (r *RBF) Similarity(inputs *mat.Dense) (*mat.Dense, error) {
	distances, err := r.cfg.Clustering.Activate(inputs)
	if err != nil {
		return nil, errors.Wrap(err, "clustering activation")
	}
	rows, cols := distances.Dims()
	if cols != r.cfg.Clusters {
		return nil, errors.Errorf("clustering returned %d distances, want %d", cols, r.cfg.Clusters)
	}
	similarity := nn.GaussianKernel(distances, r.cfg.Variance)
	if !r.cfg.ScaleBySimilarity {
		return similarity, nil
	}
	uniform := 1.0 / float64(cols)
	for i := 0; i < rows; i++ {
		row := similarity.RawRowView(i)
		total := floats.Sum(row)
		if total == 0 {
			for j := range row {
				row[j] = uniform
			}
			continue
		}
		for j := range row {
			row[j] /= total
		}
	}
	return similarity, nil
}

func (r *RBF) Activate(inputs *mat.Dense) (*mat.Dense, error) {
	similarity, err := r.Similarity(inputs)
	if err != nil {
		return nil, err
	}
	return linearOutput(similarity, r.weights, r.bias), nil
}

func linearOutput(similarity, weights *mat.Dense, bias []float64) *mat.Dense {
	var out mat.Dense
	out.Mul(similarity, weights)
	rows, _ := out.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), bias)
	}
	return &out
}

func (r *RBF) Strategy() learn.Strategy {
	return learn.BatchStrategy(r.TrainStep, learn.Hooks{
		PreTrain:  r.preTrain,
		PostTrain: r.postTrain,
	})
}

// TrainStep takes one optimizer step on the output layer for a batch.
func (r *RBF) TrainStep(inputs, targets *mat.Dense) (learn.StepError, error) {
	if r.cfg.ClusterIncrementally {
		if _, err := learn.Step(r.cfg.Clustering, inputs, targets); err != nil {
			return learn.NoError, errors.Wrap(err, "clustering step")
		}
	}
	similarity, err := r.Similarity(inputs)
	if err != nil {
		return learn.NoError, err
	}
	value, next, err := r.cfg.Optimizer.Next(r.problem(similarity, targets), Flatten(r.weights, r.bias))
	if err != nil {
		return learn.NoError, errors.Wrap(err, r.cfg.Optimizer.Name())
	}
	bias, weights, err := Unflatten(next, r.cfg.Clusters, r.cfg.Outputs)
	if err != nil {
		return learn.NoError, err
	}
	r.bias, r.weights = bias, weights

	jacobian := r.cfg.Optimizer.Jacobian()
	r.Converged = jacobian != nil && floats.Norm(jacobian, 2) < r.cfg.JacobianNormBreak
	return learn.Err(value), nil
}

// problem builds the optimization target for one batch. Both functions depend
// only on the parameter vector and the similarity computed for that batch.
func (r *RBF) problem(similarity, targets *mat.Dense) optimize.Problem {
	clusters, outputs := r.cfg.Clusters, r.cfg.Outputs
	errFunc := r.cfg.ErrorFunc

	objective := func(params []float64) (float64, error) {
		bias, weights, err := Unflatten(params, clusters, outputs)
		if err != nil {
			return 0, err
		}
		return errFunc.Error(linearOutput(similarity, weights, bias), targets)
	}
	objectiveJacobian := func(params []float64) (float64, []float64, error) {
		bias, weights, err := Unflatten(params, clusters, outputs)
		if err != nil {
			return 0, nil, err
		}
		value, dOutput, err := errFunc.Derivative(linearOutput(similarity, weights, bias), targets)
		if err != nil {
			return 0, nil, err
		}
		var dWeights mat.Dense
		dWeights.Mul(similarity.T(), dOutput)
		dBias := make([]float64, outputs)
		for j := range dBias {
			dBias[j] = floats.Sum(mat.Col(nil, j, dOutput))
		}
		return value, Flatten(&dWeights, dBias), nil
	}
	// Both closures are non-nil, so NewProblem cannot fail.
	problem, _ := optimize.NewProblem(objective, objectiveJacobian)
	return problem
}

func (r *RBF) preTrain(ctx context.Context, inputs, targets *mat.Dense) error {
	if r.cfg.ClusterIncrementally {
		return nil
	}
	data := dataset.Dataset{Name: "clustering", Inputs: inputs, Targets: targets}
	if _, err := learn.Train(ctx, r.cfg.Clustering, data, r.cfg.ClusterTraining); err != nil {
		return errors.Wrap(err, "train clustering")
	}
	return nil
}

func (r *RBF) postTrain(context.Context, *mat.Dense, *mat.Dense) error {
	// The next Train call may optimize a different problem.
	r.cfg.Optimizer.Reset()
	return nil
}

// Flatten lays parameters out as bias followed by the row-major weights.
func Flatten(weights *mat.Dense, bias []float64) []float64 {
	rows, cols := weights.Dims()
	flat := make([]float64, 0, len(bias)+rows*cols)
	flat = append(flat, bias...)
	for i := 0; i < rows; i++ {
		flat = append(flat, weights.RawRowView(i)...)
	}
	return flat
}

// Unflatten is the inverse of Flatten.
func Unflatten(flat []float64, clusters, outputs int) ([]float64, *mat.Dense, error) {
	if len(flat) != outputs+clusters*outputs {
		return nil, nil, errors.Errorf("flat parameters have %d values, want %d", len(flat), outputs+clusters*outputs)
	}
	bias := append([]float64(nil), flat[:outputs]...)
	weights := mat.NewDense(clusters, outputs, append([]float64(nil), flat[outputs:]...))
	return bias, weights, nil
}
