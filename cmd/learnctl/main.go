package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"learning/internal/storage"
	"learning/pkg/learning"
)

const (
	defaultDBPath       = "learning.db"
	defaultArtifactsDir = "runs"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "predict":
		return runPredict(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	case "list":
		return runList(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that talks to a store.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	verbose      *bool
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", defaultDBPath, "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", defaultArtifactsDir, "per-run artifact directory (empty disables)"),
		verbose:      fs.Bool("v", false, "debug logging"),
	}
}

func (f clientFlags) open(ctx context.Context) (*learning.Client, error) {
	return learning.New(ctx, learning.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		Logger:       newLogger(stderr, *f.verbose),
	})
}

// newLogger writes text to terminals and JSON lines everywhere else.
func newLogger(out io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if isTerminal(out) {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func runTrain(ctx context.Context, args []string) error {
	defaults := learning.DefaultTrainRequest()
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	client := registerClientFlags(fs)
	configPath := fs.String("config", "", "optional train config JSON path; explicit flags override it")
	profileMode := fs.String("profile", "", "profile the run: cpu|mem")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	fs.String("model", defaults.Model, "model kind: "+strings.Join(learning.ListModelKinds(), "|"))
	fs.String("dataset", defaults.Dataset, "built-in dataset name")
	fs.String("csv", "", "numeric CSV dataset path (overrides -dataset)")
	fs.Int("targets", defaults.TargetColumns, "trailing CSV columns used as targets")
	fs.Int("clusters", defaults.Clusters, "rbf clusters or som neurons")
	fs.Float64("variance", 0, "rbf gaussian variance (0 derives it from clusters)")
	fs.Bool("cluster-incrementally", false, "train the rbf clustering model alongside the output layer")
	fs.String("optimizer", "", "rbf optimizer: bfgs|steepest_descent|hill_climb (empty picks by size)")
	fs.String("error-func", "", "rbf error function (empty uses mse)")
	fs.String("hidden", "", "mlp hidden layer sizes, comma separated")
	fs.String("transfers", "", "mlp per-layer transfer names, comma separated")
	fs.Float64("learning-rate", 0, "mlp learning rate (0 keeps the default)")
	fs.Float64("momentum", 0, "mlp momentum (0 keeps the default)")
	fs.Int("iterations", defaults.Iterations, "max iterations per attempt")
	fs.Int("retries", defaults.Retries, "restarts after a failed attempt")
	fs.Float64("error-break", defaults.ErrorBreak, "stop once the step error drops to this value")
	fs.Int("stagnant-distance", defaults.StagnantDistance, "stagnation window length")
	fs.Float64("stagnant-threshold", defaults.StagnantThreshold, "stagnation closeness threshold (negative disables)")
	fs.Int("error-improve-iters", 0, "stop after this many iterations without improvement (0 disables)")
	fs.String("selection", "", "pattern selection: iterative|sample|random")
	fs.Int("batch-size", defaults.BatchSize, "patterns per iteration for sample|random (negative picks by size)")
	fs.Bool("stochastic", false, "train one mini-batch per round against the whole dataset error")
	fs.Int("rounds", 0, "stochastic rounds (0 keeps the default)")
	fs.Float64("stochastic-error-break", 0, "stop rounds once the dataset error drops to this value (0 keeps the default)")
	fs.Int64("seed", defaults.Seed, "rng seed")
	fs.Bool("logging", false, "log every training iteration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultTrainRequest(*configPath)
	if err != nil {
		return err
	}
	set := make(map[string]bool)
	values := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
		values[f.Name] = f.Value.(flag.Getter).Get()
	})
	if err := overrideFromFlags(&req, set, values); err != nil {
		return err
	}

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return errors.Errorf("unsupported profile mode: %s", *profileMode)
	}

	c, err := client.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	started := time.Now()
	summary, err := c.Train(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		return encodeJSON(map[string]any{
			"run_id":        summary.RunID,
			"model_id":      summary.ModelID,
			"model":         summary.ModelKind,
			"dataset":       summary.Dataset,
			"attempts":      summary.Attempts,
			"iterations":    summary.Iterations,
			"error":         summary.FinalError.String(),
			"converged":     summary.Converged,
			"avg_mse":       summary.AvgMSE,
			"artifacts_dir": summary.ArtifactsDir,
		})
	}
	fmt.Fprintf(stdout, "run_id=%s model_id=%s model=%s dataset=%s attempts=%d iterations=%s error=%s converged=%t avg_mse=%.6f elapsed=%s\n",
		summary.RunID,
		summary.ModelID,
		summary.ModelKind,
		summary.Dataset,
		summary.Attempts,
		humanize.Comma(int64(summary.Iterations)),
		summary.FinalError,
		summary.Converged,
		summary.AvgMSE,
		time.Since(started).Round(time.Millisecond),
	)
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	client := registerClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	c, err := client.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	runs, err := c.Runs(ctx, learning.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created=%s model=%s dataset=%s attempts=%d iterations=%s converged=%t avg_mse=%.6f\n",
			r.ID,
			humanize.Time(r.CreatedAtUTC),
			r.ModelKind,
			r.Dataset,
			r.Attempts,
			humanize.Comma(int64(r.Iterations)),
			r.Converged,
			r.AvgMSE,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	client := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id (empty uses the latest run)")
	jsonOut := fs.Bool("json", false, "emit the error history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	history, err := c.ErrorHistory(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(history)
	}
	for i, v := range history {
		fmt.Fprintf(stdout, "iteration=%d error=%.6f\n", i+1, v)
	}
	return nil
}

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	client := registerClientFlags(fs)
	modelID := fs.String("model-id", "", "stored model id")
	input := fs.String("input", "", "input rows: comma separated values, rows separated by ';'")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelID == "" {
		return errors.New("predict requires --model-id")
	}
	rows, err := parseRows(*input)
	if err != nil {
		return err
	}

	c, err := client.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	outputs, err := c.Predict(ctx, *modelID, rows)
	if err != nil {
		return err
	}
	for i, out := range outputs {
		fmt.Fprintf(stdout, "%s -> %s\n", formatRow(rows[i]), formatRow(out))
	}
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	client := registerClientFlags(fs)
	runIDs := fs.String("run-ids", "", "comma separated run ids (empty uses the latest run)")
	out := fs.String("out", "error_history.png", "output image path (.png, .svg, .pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.PlotHistory(ctx, *out, splitList(*runIDs)...); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "plot=%s\n", *out)
	return nil
}

func runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	client := registerClientFlags(fs)
	modelID := fs.String("model-id", "", "stored model id")
	datasetName := fs.String("dataset", "xor", "built-in dataset to compare against")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelID == "" {
		return errors.New("compare requires --model-id")
	}

	c, err := client.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Compare(ctx, stdout, *modelID, *datasetName)
}

func runList(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sections := []struct {
		name  string
		items []string
	}{
		{"models", learning.ListModelKinds()},
		{"datasets", learning.ListDatasets()},
		{"transfers", learning.ListTransfers()},
		{"error_funcs", learning.ListErrorFuncs()},
		{"optimizers", learning.ListOptimizers()},
	}
	for _, section := range sections {
		fmt.Fprintf(stdout, "%s=%s\n", section.name, strings.Join(section.items, ","))
	}
	return nil
}

func usageError(msg string) error {
	return errors.Errorf("%s\nusage: learnctl <train|runs|history|predict|compare|plot|list> [flags]", msg)
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInts(raw string) ([]int, error) {
	items := splitList(raw)
	out := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", item)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseRows(raw string) ([][]float64, error) {
	var rows [][]float64
	for _, chunk := range strings.Split(raw, ";") {
		items := splitList(chunk)
		if len(items) == 0 {
			continue
		}
		row := make([]float64, 0, len(items))
		for _, item := range items {
			v, err := strconv.ParseFloat(item, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parse %q", item)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("at least one input row is required")
	}
	return rows, nil
}

func formatRow(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
