package learning

import (
	"math/rand"

	"github.com/pkg/errors"

	"learning/internal/codec"
	"learning/internal/dataset"
	"learning/internal/errfunc"
	"learning/internal/learn"
	"learning/internal/mlp"
	"learning/internal/nn"
	"learning/internal/optimize"
	"learning/internal/rbf"
	"learning/internal/som"
)

const (
	defaultClusters = 4
	defaultHidden   = 4
)

// trainable is a model the client can train and persist.
type trainable interface {
	learn.Model
	Serialize() (string, error)
}

func ListModelKinds() []string {
	return []string{mlp.Kind, rbf.Kind, som.Kind}
}

// supervised reports whether a model kind's outputs are compared to targets.
func supervised(kind string) bool {
	return kind != som.Kind
}

func ListDatasets() []string { return dataset.ListBuiltins() }

// ListTransfers names the activation functions usable as mlp transfers.
func ListTransfers() []string { return nn.ListTransfers() }

func ListErrorFuncs() []string { return errfunc.List() }

func ListOptimizers() []string {
	return []string{optimize.NameBFGS, optimize.NameHillClimb, optimize.NameSteepestDescent}
}

func buildModel(req TrainRequest, data dataset.Dataset, rng *rand.Rand) (trainable, error) {
	clusters := req.Clusters
	if clusters <= 0 {
		clusters = defaultClusters
	}

	switch req.Model {
	case "", rbf.Kind:
		cfg := rbf.DefaultConfig(data.Attributes(), clusters, data.Outputs())
		cfg.Variance = req.Variance
		cfg.ClusterIncrementally = req.ClusterIncrementally
		cfg.Seed = req.Seed
		cfg.Logging = req.Logging
		if req.Optimizer != "" {
			optimizer, err := optimize.FromName(req.Optimizer, clusters*data.Outputs(), rng)
			if err != nil {
				return nil, err
			}
			cfg.Optimizer = optimizer
		}
		if req.ErrorFunc != "" {
			errFunc, err := errfunc.Get(req.ErrorFunc)
			if err != nil {
				return nil, err
			}
			cfg.ErrorFunc = errFunc
		}
		return rbf.New(cfg)
	case mlp.Kind:
		hidden := req.Hidden
		if len(hidden) == 0 {
			hidden = []int{defaultHidden}
		}
		layers := append(append([]int{data.Attributes()}, hidden...), data.Outputs())
		cfg := mlp.DefaultConfig(layers...)
		cfg.Transfers = req.Transfers
		if req.LearningRate > 0 {
			cfg.LearningRate = req.LearningRate
		}
		if req.Momentum > 0 {
			cfg.Momentum = req.Momentum
		}
		cfg.Seed = req.Seed
		cfg.Logging = req.Logging
		return mlp.New(cfg)
	case som.Kind:
		cfg := som.DefaultConfig(data.Attributes(), clusters)
		cfg.Seed = req.Seed
		cfg.Logging = req.Logging
		return som.New(cfg)
	default:
		return nil, errors.Errorf("unsupported model: %s", req.Model)
	}
}

func loadModel(blob string) (trainable, error) {
	kind, err := codec.KindOf(blob)
	if err != nil {
		return nil, err
	}
	switch kind {
	case rbf.Kind:
		return rbf.Unserialize(blob)
	case mlp.Kind:
		return mlp.Unserialize(blob)
	case som.Kind:
		return som.Unserialize(blob)
	default:
		return nil, errors.Errorf("unsupported model: %s", kind)
	}
}
