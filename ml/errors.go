package ml

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedModel = errors.New("unsupported model type")
	ErrFeatureMismatch  = errors.New("pool features do not match model features")
)

// LoadError reports a model artifact that is missing or malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InferenceError reports input the model cannot consume. Row is -1 and
// Feature empty when the problem is not tied to a single cell.
type InferenceError struct {
	Row     int
	Feature string
	Err     error
}

func (e *InferenceError) Error() string {
	switch {
	case e.Row >= 0 && e.Feature != "":
		return fmt.Sprintf("inference: row %d, feature %q: %v", e.Row, e.Feature, e.Err)
	case e.Row >= 0:
		return fmt.Sprintf("inference: row %d: %v", e.Row, e.Err)
	case e.Feature != "":
		return fmt.Sprintf("inference: feature %q: %v", e.Feature, e.Err)
	default:
		return fmt.Sprintf("inference: %v", e.Err)
	}
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func errShape(columns int) error {
	return fmt.Errorf("expected 1 prediction column, got %d", columns)
}
