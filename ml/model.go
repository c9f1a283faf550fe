package ml

// Model is a trained classifier loaded from an artifact. Implementations are
// immutable after loading and safe for concurrent use.
type Model interface {
	FeatureNames() []string
	CategoricalFeatures() []string
	ClassNames() []string
	Predict(pool *Pool) (Labels, error)
}

// Labels is the raw prediction output: one row per pool row, each holding
// one or more label columns.
type Labels [][]string

// Flatten returns the labels as a single column. It fails unless every row
// has exactly one column.
func (l Labels) Flatten() ([]string, error) {
	flat := make([]string, len(l))
	for i, row := range l {
		if len(row) != 1 {
			return nil, &InferenceError{Row: i, Err: errShape(len(row))}
		}
		flat[i] = row[0]
	}
	return flat, nil
}
