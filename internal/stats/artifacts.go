package stats

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"learning/internal/record"
)

const (
	runFile          = "run.json"
	summaryFile      = "summary.json"
	errorHistoryFile = "error_history.csv"
)

// RunArtifacts is everything written to disk for one training run.
type RunArtifacts struct {
	Run     record.TrainingRun
	Config  map[string]any
	History []float64
}

// WriteRunArtifacts writes a run's record, config, summary, and error history
// under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", errors.New("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if artifacts.Config != nil {
		if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
			return "", err
		}
	}
	if len(artifacts.History) > 0 {
		summary, err := Summarize(artifacts.History)
		if err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(runDir, summaryFile), summary); err != nil {
			return "", err
		}
	}
	if err := WriteErrorSeries(runDir, artifacts.History); err != nil {
		return "", err
	}
	return runDir, nil
}

func WriteErrorSeries(runDir string, history []float64) error {
	path := filepath.Join(runDir, errorHistoryFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"iteration", "error"}); err != nil {
		return err
	}
	for i, value := range history {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(value, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadErrorSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, errorHistoryFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, errors.New("error series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(row) < 2 {
			return nil, false, errors.New("error series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func ReadRun(baseDir, runID string) (record.TrainingRun, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return record.TrainingRun{}, false, nil
		}
		return record.TrainingRun{}, false, err
	}
	var run record.TrainingRun
	if err := json.Unmarshal(data, &run); err != nil {
		return record.TrainingRun{}, false, err
	}
	return run, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
