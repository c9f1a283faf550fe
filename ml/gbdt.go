package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const GBDTModelType = "gbdt_classifier"

type gbdtArtifact struct {
	ModelType           string    `json:"model_type"`
	FeatureNames        []string  `json:"feature_names"`
	CategoricalFeatures []string  `json:"categorical_features"`
	ClassNames          []string  `json:"class_names"`
	Bias                []float64 `json:"bias"`
	Trees               []Tree    `json:"trees"`
}

// GBDTClassifier is a gradient-boosted tree ensemble. Two-class models carry
// one raw score per row (positive selects the second class); models with K
// classes carry K scores and pick the largest.
type GBDTClassifier struct {
	features    []string
	categorical []string
	isCat       []bool
	classes     []string
	bias        []float64
	trees       []Tree
}

// Load reads a GBDT artifact from path.
func (m *GBDTClassifier) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.UnmarshalJSON(payload)
}

func (m *GBDTClassifier) UnmarshalJSON(payload []byte) error {
	var a gbdtArtifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return err
	}
	if a.ModelType != GBDTModelType {
		return fmt.Errorf("%w: %q", ErrUnsupportedModel, a.ModelType)
	}
	if len(a.FeatureNames) == 0 {
		return errors.New("model has no features")
	}
	if len(a.ClassNames) < 2 {
		return errors.New("model needs at least two classes")
	}
	if len(a.Trees) == 0 {
		return errors.New("model has no trees")
	}

	position := make(map[string]int, len(a.FeatureNames))
	for j, name := range a.FeatureNames {
		if _, dup := position[name]; dup {
			return fmt.Errorf("duplicate feature %q", name)
		}
		position[name] = j
	}
	isCat := make([]bool, len(a.FeatureNames))
	for _, name := range a.CategoricalFeatures {
		j, ok := position[name]
		if !ok {
			return fmt.Errorf("categorical feature %q is not a model feature", name)
		}
		isCat[j] = true
	}

	width := scoreWidth(len(a.ClassNames))
	bias := a.Bias
	if len(bias) == 0 {
		bias = make([]float64, width)
	}
	if len(bias) != width {
		return fmt.Errorf("bias has %d values, want %d", len(bias), width)
	}
	for i := range a.Trees {
		if err := a.Trees[i].prepare(isCat, width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}

	*m = GBDTClassifier{
		features:    a.FeatureNames,
		categorical: a.CategoricalFeatures,
		isCat:       isCat,
		classes:     a.ClassNames,
		bias:        bias,
		trees:       a.Trees,
	}
	return nil
}

func scoreWidth(classes int) int {
	if classes == 2 {
		return 1
	}
	return classes
}

func (m *GBDTClassifier) FeatureNames() []string {
	return append([]string(nil), m.features...)
}

func (m *GBDTClassifier) CategoricalFeatures() []string {
	return append([]string(nil), m.categorical...)
}

func (m *GBDTClassifier) ClassNames() []string {
	return append([]string(nil), m.classes...)
}

// Predict scores every pool row and returns one label per row as an n×1
// column.
func (m *GBDTClassifier) Predict(pool *Pool) (Labels, error) {
	if err := m.checkPool(pool); err != nil {
		return nil, err
	}
	labels := make(Labels, pool.Len())
	scores := make([]float64, len(m.bias))
	for i := range labels {
		copy(scores, m.bias)
		for t := range m.trees {
			for k, v := range m.trees[t].leaf(pool.numeric[i], pool.text[i]) {
				scores[k] += v
			}
		}
		labels[i] = []string{m.classes[m.decide(scores)]}
	}
	return labels, nil
}

func (m *GBDTClassifier) decide(scores []float64) int {
	if len(scores) == 1 {
		if scores[0] > 0 {
			return 1
		}
		return 0
	}
	best := 0
	for k := 1; k < len(scores); k++ {
		if scores[k] > scores[best] {
			best = k
		}
	}
	return best
}

func (m *GBDTClassifier) checkPool(pool *Pool) error {
	if len(pool.features) != len(m.features) {
		return &InferenceError{Row: -1, Err: fmt.Errorf("%w: pool has %d features, model expects %d", ErrFeatureMismatch, len(pool.features), len(m.features))}
	}
	for j, name := range m.features {
		if pool.features[j] != name {
			return &InferenceError{Row: -1, Feature: pool.features[j], Err: fmt.Errorf("%w: expected %q at position %d", ErrFeatureMismatch, name, j)}
		}
		if pool.categorical[j] != m.isCat[j] {
			kind := "numeric"
			if m.isCat[j] {
				kind = "categorical"
			}
			return &InferenceError{Row: -1, Feature: name, Err: fmt.Errorf("model was trained with this feature as %s", kind)}
		}
	}
	return nil
}
