// Package learning is the public entry point for training, storing, and
// querying models.
package learning

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"learning/internal/dataset"
	"learning/internal/learn"
	"learning/internal/record"
	"learning/internal/selection"
	"learning/internal/stats"
	"learning/internal/storage"
)

const defaultDBPath = "learning.db"

var (
	ErrRunNotFound   = errors.New("training run not found")
	ErrModelNotFound = errors.New("model not found")
)

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir receives per-run artifacts. Empty disables them.
	ArtifactsDir string
	Logger       logrus.FieldLogger
}

type Client struct {
	store        storage.Store
	artifactsDir string
	log          logrus.FieldLogger
}

type TrainRequest struct {
	// Model is rbf, mlp, or som. Empty means rbf.
	Model string
	// Dataset names a built-in dataset. CSVPath takes precedence when set.
	Dataset       string
	CSVPath       string
	TargetColumns int

	Clusters             int
	Variance             float64
	ClusterIncrementally bool
	Optimizer            string
	ErrorFunc            string

	Hidden       []int
	Transfers    []string
	LearningRate float64
	Momentum     float64

	Iterations        int
	Retries           int
	ErrorBreak        float64
	StagnantDistance  int
	StagnantThreshold float64
	ErrorImproveIters int
	Selection         string
	// BatchSize below zero picks a size from the dataset size.
	BatchSize int

	// Stochastic trains on one mini-batch per round until the whole dataset's
	// error reaches StochasticErrorBreak or Rounds run out.
	Stochastic           bool
	Rounds               int
	StochasticErrorBreak float64

	Seed    int64
	Logging bool
}

type TrainSummary struct {
	RunID        string
	ModelID      string
	ModelKind    string
	Dataset      string
	Attempts     int
	Iterations   int
	FinalError   learn.StepError
	Converged    bool
	AvgMSE       float64
	History      []float64
	ArtifactsDir string
}

type RunsRequest struct {
	Limit int
}

func New(ctx context.Context, opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, errors.Wrapf(err, "init %s store", storeKind)
	}

	return &Client{
		store:        store,
		artifactsDir: opts.ArtifactsDir,
		log:          logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// DefaultTrainRequest fills training options with the loop's defaults.
func DefaultTrainRequest() TrainRequest {
	opts := learn.DefaultOptions()
	return TrainRequest{
		Model:             "rbf",
		Dataset:           "xor",
		TargetColumns:     1,
		Clusters:          defaultClusters,
		Iterations:        opts.Iterations,
		Retries:           opts.Retries,
		ErrorBreak:        opts.ErrorBreak,
		StagnantDistance:  opts.StagnantDistance,
		StagnantThreshold: opts.StagnantThreshold,
		BatchSize:         -1,
		Seed:              1,
	}
}

func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	rng := rand.New(rand.NewSource(req.Seed))
	data, err := loadDataset(req, rng)
	if err != nil {
		return TrainSummary{}, err
	}
	model, err := buildModel(req, data, rng)
	if err != nil {
		return TrainSummary{}, errors.Wrap(err, "build model")
	}
	opts, err := trainOptions(req, rng, c.log)
	if err != nil {
		return TrainSummary{}, err
	}

	runID := uuid.NewString()
	modelID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{"run_id": runID, "model": modelKind(req), "dataset": data.Name})
	log.WithField("rows", data.Len()).Info("training started")
	started := time.Now()

	result, err := fit(ctx, model, data, req, opts, rng)
	if err != nil {
		return TrainSummary{}, errors.Wrap(err, "train")
	}
	// Unsupervised models output cluster distances, not targets.
	var avg float64
	if supervised(modelKind(req)) {
		if avg, err = learn.AvgMSE(model, data); err != nil {
			return TrainSummary{}, err
		}
	}

	blob, err := model.Serialize()
	if err != nil {
		return TrainSummary{}, errors.Wrap(err, "serialize model")
	}
	now := time.Now().UTC()
	snapshot := record.ModelSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              modelID,
		Kind:            modelKind(req),
		Blob:            blob,
		CreatedAtUTC:    now,
	}
	finalError, defined := result.Error.Value()
	run := record.TrainingRun{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		ModelID:         modelID,
		ModelKind:       snapshot.Kind,
		Dataset:         data.Name,
		Attempts:        result.Attempts,
		Iterations:      result.Iterations,
		FinalError:      finalError,
		ErrorDefined:    defined,
		Converged:       result.Converged,
		AvgMSE:          avg,
		CreatedAtUTC:    now,
	}
	if err := c.store.SaveModel(ctx, snapshot); err != nil {
		return TrainSummary{}, errors.Wrap(err, "save model")
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return TrainSummary{}, errors.Wrap(err, "save run")
	}
	if err := c.store.SaveErrorHistory(ctx, runID, result.History); err != nil {
		return TrainSummary{}, errors.Wrap(err, "save error history")
	}

	summary := TrainSummary{
		RunID:      runID,
		ModelID:    modelID,
		ModelKind:  snapshot.Kind,
		Dataset:    data.Name,
		Attempts:   result.Attempts,
		Iterations: result.Iterations,
		FinalError: result.Error,
		Converged:  result.Converged,
		AvgMSE:     avg,
		History:    result.History,
	}
	if c.artifactsDir != "" {
		dir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
			Run:     run,
			Config:  requestConfig(req),
			History: result.History,
		})
		if err != nil {
			return TrainSummary{}, errors.Wrap(err, "write artifacts")
		}
		summary.ArtifactsDir = dir
	}

	log.WithFields(logrus.Fields{
		"iterations": result.Iterations,
		"attempts":   result.Attempts,
		"error":      result.Error.String(),
		"avg_mse":    avg,
		"elapsed":    time.Since(started).String(),
	}).Info("training finished")
	return summary, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]record.TrainingRun, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

// ErrorHistory returns the step errors of a run. An empty id selects the
// latest run.
func (c *Client) ErrorHistory(ctx context.Context, runID string) ([]float64, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetErrorHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrRunNotFound, runID)
	}
	return history, nil
}

// Predict activates a stored model on raw input rows.
func (c *Client) Predict(ctx context.Context, modelID string, rows [][]float64) ([][]float64, error) {
	model, err := c.loadStoredModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("at least one input row is required")
	}
	if len(rows[0]) == 0 {
		return nil, errors.New("input rows have no values")
	}
	inputs := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, errors.Wrapf(dataset.ErrRagged, "row %d", i)
		}
		inputs.SetRow(i, row)
	}
	outputs, err := model.Activate(inputs)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = mat.Row(nil, i, outputs)
	}
	return out, nil
}

// PlotHistory draws the error histories of the given runs into one image.
// No ids selects the latest run.
func (c *Client) PlotHistory(ctx context.Context, path string, runIDs ...string) error {
	if len(runIDs) == 0 {
		runIDs = []string{""}
	}
	series := make([]stats.Series, 0, len(runIDs))
	for _, id := range runIDs {
		resolved, err := c.resolveRunID(ctx, id)
		if err != nil {
			return err
		}
		history, err := c.ErrorHistory(ctx, resolved)
		if err != nil {
			return err
		}
		series = append(series, stats.Series{Name: resolved, Values: history})
	}
	if len(series) > 1 {
		histories := make([][]float64, len(series))
		for i, s := range series {
			histories[i] = s.Values
		}
		series = append(series, stats.Series{Name: "mean", Values: stats.AverageSeries(histories)})
	}
	return stats.PlotErrorHistory(path, "Training error", series...)
}

// Compare writes each target of a built-in dataset next to the stored
// model's output for it.
func (c *Client) Compare(ctx context.Context, w io.Writer, modelID, datasetName string) error {
	model, err := c.loadStoredModel(ctx, modelID)
	if err != nil {
		return err
	}
	data, err := dataset.Builtin(datasetName, rand.New(rand.NewSource(1)))
	if err != nil {
		return err
	}
	return learn.WriteComparison(w, model, data)
}

func (c *Client) loadStoredModel(ctx context.Context, modelID string) (trainable, error) {
	snapshot, ok, err := c.store.GetModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrModelNotFound, modelID)
	}
	model, err := loadModel(snapshot.Blob)
	if err != nil {
		return nil, errors.Wrapf(err, "load model %s", modelID)
	}
	return model, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.Wrap(ErrRunNotFound, "no runs recorded")
	}
	return runs[0].ID, nil
}

func loadDataset(req TrainRequest, rng *rand.Rand) (dataset.Dataset, error) {
	if req.CSVPath != "" {
		targetColumns := req.TargetColumns
		if targetColumns <= 0 {
			targetColumns = 1
		}
		return dataset.LoadCSV(req.CSVPath, targetColumns)
	}
	name := req.Dataset
	if name == "" {
		name = "xor"
	}
	return dataset.Builtin(name, rng)
}

// fit runs the training loop, or stochastic rounds of it when requested.
func fit(ctx context.Context, model learn.Model, data dataset.Dataset, req TrainRequest, opts learn.Options, rng *rand.Rand) (learn.Result, error) {
	if !req.Stochastic {
		return learn.Train(ctx, model, data, opts)
	}
	if !supervised(modelKind(req)) {
		return learn.Result{}, errors.Errorf("stochastic training needs a supervised model, got %s", modelKind(req))
	}
	sopts := learn.DefaultStochasticOptions(rng)
	sopts.Training = opts
	sopts.BatchSize = req.BatchSize
	if req.Rounds > 0 {
		sopts.Rounds = req.Rounds
	}
	if req.StochasticErrorBreak > 0 {
		sopts.ErrorBreak = req.StochasticErrorBreak
	}
	out, err := learn.StochasticTrain(ctx, model, data, sopts)
	if err != nil {
		return learn.Result{}, err
	}
	return learn.Result{
		Attempts:   1,
		Iterations: out.Rounds,
		Error:      learn.Err(out.AvgMSE),
		Converged:  out.AvgMSE <= sopts.ErrorBreak,
		History:    out.History,
	}, nil
}

func trainOptions(req TrainRequest, rng *rand.Rand, logger logrus.FieldLogger) (learn.Options, error) {
	opts := learn.DefaultOptions()
	opts.Logger = logger
	if req.Iterations > 0 {
		opts.Iterations = req.Iterations
	}
	opts.Retries = req.Retries
	if req.ErrorBreak > 0 {
		opts.ErrorBreak = req.ErrorBreak
	}
	if req.StagnantDistance > 0 {
		opts.StagnantDistance = req.StagnantDistance
	}
	if req.StagnantThreshold != 0 {
		opts.StagnantThreshold = req.StagnantThreshold
	}
	opts.ErrorImproveIters = req.ErrorImproveIters
	pick, err := selection.FromName(req.Selection, rng, req.BatchSize)
	if err != nil {
		return learn.Options{}, err
	}
	opts.Select = pick
	return opts, opts.Validate()
}

func modelKind(req TrainRequest) string {
	if req.Model == "" {
		return "rbf"
	}
	return req.Model
}

func requestConfig(req TrainRequest) map[string]any {
	return map[string]any{
		"model":                 modelKind(req),
		"dataset":               req.Dataset,
		"csv_path":              req.CSVPath,
		"clusters":              req.Clusters,
		"hidden":                req.Hidden,
		"optimizer":             req.Optimizer,
		"error_func":            req.ErrorFunc,
		"iterations":            req.Iterations,
		"retries":               req.Retries,
		"error_break":           req.ErrorBreak,
		"selection":             req.Selection,
		"batch_size":            req.BatchSize,
		"seed":                  req.Seed,
		"cluster_incrementally": req.ClusterIncrementally,
		"stochastic":            req.Stochastic,
		"rounds":                req.Rounds,
	}
}
