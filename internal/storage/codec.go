package storage

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"learning/internal/record"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned stamps a record with the current schema and codec versions.
func Versioned() record.VersionedRecord {
	return record.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeModelSnapshot(s record.ModelSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeModelSnapshot(data []byte) (record.ModelSnapshot, error) {
	var snapshot record.ModelSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return record.ModelSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return record.ModelSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeTrainingRun(r record.TrainingRun) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeTrainingRun(data []byte) (record.TrainingRun, error) {
	var run record.TrainingRun
	if err := json.Unmarshal(data, &run); err != nil {
		return record.TrainingRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return record.TrainingRun{}, err
	}
	return run, nil
}

func EncodeErrorHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeErrorHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v record.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return errors.Wrapf(ErrVersionMismatch, "schema=%d codec=%d", v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

func sortRunsNewestFirst(runs []record.TrainingRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAtUTC.Equal(runs[j].CreatedAtUTC) {
			return runs[i].CreatedAtUTC.After(runs[j].CreatedAtUTC)
		}
		return runs[i].ID < runs[j].ID
	})
}
