package rbf

import (
	"math/rand"

	"github.com/pkg/errors"

	"learning/internal/codec"
	"learning/internal/errfunc"
	"learning/internal/learn"
	"learning/internal/optimize"
)

type state struct {
	Attributes           int           `json:"attributes"`
	Clusters             int           `json:"clusters"`
	Outputs              int           `json:"outputs"`
	Optimizer            string        `json:"optimizer"`
	ErrorFunc            string        `json:"error_func"`
	JacobianNormBreak    float64       `json:"jacobian_norm_break"`
	Variance             float64       `json:"variance"`
	ScaleBySimilarity    bool          `json:"scale_by_similarity"`
	Clustering           string        `json:"clustering"`
	ClusterIncrementally bool          `json:"cluster_incrementally"`
	ClusterTraining      trainingState `json:"cluster_training"`
	Seed                 int64         `json:"seed"`
	Draws                int           `json:"draws"`
	Weights              []float64     `json:"weights"`
	Iteration            int           `json:"iteration"`
	Converged            bool          `json:"converged"`
	Logging              bool          `json:"logging"`
}

// trainingState holds the plain fields of learn.Options. Selection, the
// pattern callback and the logger go back to their defaults.
type trainingState struct {
	Iterations        int     `json:"iterations"`
	Retries           int     `json:"retries"`
	ErrorBreak        float64 `json:"error_break"`
	StagnantDistance  int     `json:"stagnant_distance"`
	StagnantThreshold float64 `json:"stagnant_threshold"`
	ErrorImproveIters int     `json:"error_improve_iters"`
}

func newTrainingState(opts learn.Options) trainingState {
	return trainingState{
		Iterations:        opts.Iterations,
		Retries:           opts.Retries,
		ErrorBreak:        opts.ErrorBreak,
		StagnantDistance:  opts.StagnantDistance,
		StagnantThreshold: opts.StagnantThreshold,
		ErrorImproveIters: opts.ErrorImproveIters,
	}
}

func (t trainingState) options() learn.Options {
	opts := learn.DefaultOptions()
	opts.Iterations = t.Iterations
	opts.Retries = t.Retries
	opts.ErrorBreak = t.ErrorBreak
	opts.StagnantDistance = t.StagnantDistance
	opts.StagnantThreshold = t.StagnantThreshold
	opts.ErrorImproveIters = t.ErrorImproveIters
	return opts
}

// Serialize encodes the network with its clustering model nested as a blob.
// The clustering kind must be registered and the optimizer must be one
// optimize.FromName builds, or the blob could not be restored.
// Optimizer state is not kept; only the optimizer's name is. The number of
// weight draws is kept, so a restored network's next Reset matches the
// original's.
func (r *RBF) Serialize() (string, error) {
	clustering, err := r.cfg.Clustering.Serialize()
	if err != nil {
		return "", errors.Wrap(err, "serialize clustering")
	}
	kind, err := codec.KindOf(clustering)
	if err != nil {
		return "", errors.Wrap(err, "serialize clustering")
	}
	if _, err := getClusterer(kind); err != nil {
		return "", errors.Wrap(err, "serialize clustering")
	}
	optimizerName := r.cfg.Optimizer.Name()
	if _, err := optimize.FromName(optimizerName, r.cfg.Clusters*r.cfg.Outputs, rand.New(rand.NewSource(r.cfg.Seed))); err != nil {
		return "", errors.Wrap(err, "serialize optimizer")
	}

	return codec.Encode(Kind, state{
		Attributes:           r.cfg.Attributes,
		Clusters:             r.cfg.Clusters,
		Outputs:              r.cfg.Outputs,
		Optimizer:            optimizerName,
		ErrorFunc:            r.cfg.ErrorFunc.Name(),
		JacobianNormBreak:    r.cfg.JacobianNormBreak,
		Variance:             r.cfg.Variance,
		ScaleBySimilarity:    r.cfg.ScaleBySimilarity,
		Clustering:           clustering,
		ClusterIncrementally: r.cfg.ClusterIncrementally,
		ClusterTraining:      newTrainingState(r.cfg.ClusterTraining),
		Seed:                 r.cfg.Seed,
		Draws:                r.draws,
		Weights:              Flatten(r.weights, r.bias),
		Iteration:            r.Iteration,
		Converged:            r.Converged,
		Logging:              r.Logging,
	})
}

func Unserialize(blob string) (*RBF, error) {
	var st state
	if err := codec.Decode(blob, Kind, &st); err != nil {
		return nil, err
	}
	clustering, err := unserializeClustering(st.Clustering)
	if err != nil {
		return nil, err
	}
	optimizer, err := optimize.FromName(st.Optimizer, st.Clusters*st.Outputs, rand.New(rand.NewSource(st.Seed)))
	if err != nil {
		return nil, errors.Wrap(err, "rbf optimizer")
	}
	errFunc, err := errfunc.Get(st.ErrorFunc)
	if err != nil {
		return nil, errors.Wrap(err, "rbf error function")
	}

	cfg := DefaultConfig(st.Attributes, st.Clusters, st.Outputs)
	cfg.Optimizer = optimizer
	cfg.ErrorFunc = errFunc
	cfg.JacobianNormBreak = st.JacobianNormBreak
	cfg.Variance = st.Variance
	cfg.ScaleBySimilarity = st.ScaleBySimilarity
	cfg.Clustering = clustering
	cfg.ClusterIncrementally = st.ClusterIncrementally
	if st.ClusterTraining.Iterations != 0 {
		cfg.ClusterTraining = st.ClusterTraining.options()
	}
	cfg.Seed = st.Seed
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}

	bias, weights, err := Unflatten(st.Weights, st.Clusters, st.Outputs)
	if err != nil {
		return nil, errors.Wrap(codec.ErrMalformed, err.Error())
	}
	for r.draws < st.Draws {
		r.randomWeight()
	}
	r.bias, r.weights = bias, weights
	r.Iteration = st.Iteration
	r.Converged = st.Converged
	r.Logging = st.Logging
	return r, nil
}

func unserializeClustering(blob string) (Clusterer, error) {
	kind, err := codec.KindOf(blob)
	if err != nil {
		return nil, errors.Wrap(err, "rbf clustering")
	}
	load, err := getClusterer(kind)
	if err != nil {
		return nil, errors.Wrap(err, "rbf clustering")
	}
	clustering, err := load(blob)
	if err != nil {
		return nil, errors.Wrap(err, "rbf clustering")
	}
	return clustering, nil
}
