// Package codec wraps serialized model state in a versioned envelope so a
// blob can be checked for its model family before it is decoded.
package codec

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const CurrentVersion = 1

var (
	ErrKindMismatch    = errors.New("model kind mismatch")
	ErrVersionMismatch = errors.New("model blob version mismatch")
	ErrMalformed       = errors.New("malformed model blob")
)

type envelope struct {
	Kind    string          `json:"kind"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(kind string, payload any) (string, error) {
	if kind == "" {
		return "", errors.New("model kind is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrapf(err, "encode %s payload", kind)
	}
	data, err := json.Marshal(envelope{Kind: kind, Version: CurrentVersion, Payload: raw})
	if err != nil {
		return "", errors.Wrapf(err, "encode %s envelope", kind)
	}
	return string(data), nil
}

func Decode(blob, kind string, out any) error {
	env, err := open(blob)
	if err != nil {
		return err
	}
	if env.Kind != kind {
		return errors.Wrapf(ErrKindMismatch, "want %s, got %s", kind, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return errors.Wrapf(ErrMalformed, "%s payload: %v", kind, err)
	}
	return nil
}

// KindOf reports the model family a blob was encoded for.
func KindOf(blob string) (string, error) {
	env, err := open(blob)
	if err != nil {
		return "", err
	}
	return env.Kind, nil
}

func open(blob string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return envelope{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if env.Kind == "" || len(env.Payload) == 0 {
		return envelope{}, errors.Wrap(ErrMalformed, "missing kind or payload")
	}
	if env.Version != CurrentVersion {
		return envelope{}, errors.Wrapf(ErrVersionMismatch, "got %d", env.Version)
	}
	return env, nil
}
