package pipeline

import (
	"bytes"
	"fmt"

	"companystatus/frame"
	"companystatus/ml"
)

// PredictionColumn holds the predicted label in displayed and exported tables.
const PredictionColumn = "Prediction"

// AttachAndExport appends predictions as the Prediction column on a copy of
// display and returns it with its CSV encoding. An existing Prediction
// column is overwritten in place.
func AttachAndExport(display *frame.Table, predictions []string) (*frame.Table, []byte, error) {
	if len(predictions) != display.Len() {
		return nil, nil, &ml.InferenceError{Row: -1, Err: fmt.Errorf("%d predictions for %d rows", len(predictions), display.Len())}
	}
	out := display.Clone()
	cells := make([]frame.Cell, len(predictions))
	for i, label := range predictions {
		cells[i] = frame.Str(label)
	}
	if err := out.SetColumn(PredictionColumn, cells); err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := out.WriteCSV(&buf); err != nil {
		return nil, nil, fmt.Errorf("encode export: %w", err)
	}
	return out, buf.Bytes(), nil
}
