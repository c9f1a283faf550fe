package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// LoadModel reads the artifact at path and builds the model its model_type
// names. Every failure is returned as a *LoadError.
func LoadModel(path string) (Model, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var header struct {
		ModelType string `json:"model_type"`
	}
	if err := json.Unmarshal(payload, &header); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	switch header.ModelType {
	case GBDTModelType:
		model := &GBDTClassifier{}
		if err := model.UnmarshalJSON(payload); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		return model, nil
	default:
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnsupportedModel, header.ModelType)}
	}
}

var loadModel = LoadModel

// Loader loads one artifact on first use and hands the same model to every
// later caller. A failed load is cached too; there is no retry.
type Loader struct {
	path  string
	once  sync.Once
	model Model
	err   error
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) Load() (Model, error) {
	l.once.Do(func() {
		l.model, l.err = loadModel(l.path)
	})
	return l.model, l.err
}
