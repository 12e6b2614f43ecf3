package record

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ModelSnapshot is a serialized model. Blob is the model's own Serialize output.
type ModelSnapshot struct {
	VersionedRecord
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Blob         string    `json:"blob"`
	CreatedAtUTC time.Time `json:"created_at_utc"`
}

type TrainingRun struct {
	VersionedRecord
	ID         string `json:"id"`
	ModelID    string `json:"model_id"`
	ModelKind  string `json:"model_kind"`
	Dataset    string `json:"dataset"`
	Attempts   int    `json:"attempts"`
	Iterations int    `json:"iterations"`
	// FinalError is meaningful only when ErrorDefined is set.
	FinalError   float64   `json:"final_error"`
	ErrorDefined bool      `json:"error_defined"`
	Converged    bool      `json:"converged"`
	AvgMSE       float64   `json:"avg_mse"`
	CreatedAtUTC time.Time `json:"created_at_utc"`
}
