package pipeline

import (
	"errors"
	"fmt"

	"companystatus/frame"
	"companystatus/ml"
)

// Engine runs a model over reconciled frames.
type Engine struct {
	model ml.Model
}

func NewEngine(model ml.Model) *Engine {
	return &Engine{model: model}
}

// Predict scores the whole frame in one model call and returns one label per
// row. Every failure is an *ml.InferenceError.
func (e *Engine) Predict(f *frame.Table, categorical []string) ([]string, error) {
	pool, err := ml.NewPool(f, categorical)
	if err != nil {
		return nil, asInferenceError(err)
	}
	labels, err := e.model.Predict(pool)
	if err != nil {
		return nil, asInferenceError(err)
	}
	predictions, err := labels.Flatten()
	if err != nil {
		return nil, asInferenceError(err)
	}
	if len(predictions) != f.Len() {
		return nil, &ml.InferenceError{Row: -1, Err: fmt.Errorf("model returned %d predictions for %d rows", len(predictions), f.Len())}
	}
	return predictions, nil
}

func asInferenceError(err error) error {
	var inferr *ml.InferenceError
	if errors.As(err, &inferr) {
		return err
	}
	return &ml.InferenceError{Row: -1, Err: err}
}
