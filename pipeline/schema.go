package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureKind 特征类型
type FeatureKind int

const (
	Numeric FeatureKind = iota
	Categorical
)

func (k FeatureKind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

func (k FeatureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ClosedYearColumn is filled with 0 when an input omits it.
const ClosedYearColumn = "closed_year"

// DefaultCategoricalMarkers mark a feature categorical when its name contains
// any of them.
var DefaultCategoricalMarkers = []string{"category", "country"}

// DefaultFills returns the column defaults used when none are configured.
func DefaultFills() map[string]string {
	return map[string]string{ClosedYearColumn: "0"}
}

// Feature 模型特征描述
type Feature struct {
	Name        string      `json:"name"`
	Kind        FeatureKind `json:"kind"`
	Description string      `json:"description,omitempty"`
}

// SchemaOptions 特征模式配置
type SchemaOptions struct {
	// CategoricalMarkers defaults to DefaultCategoricalMarkers when nil.
	CategoricalMarkers []string
	// Categorical and Numeric override the marker heuristic per feature.
	Categorical []string
	Numeric     []string
	// Defaults defaults to DefaultFills() when nil.
	Defaults     map[string]string
	Descriptions map[string]string
	// Strict rejects inputs missing a feature that has no default.
	Strict bool
}

// Schema is the ordered feature list a model expects, split into
// categorical and numeric features.
type Schema struct {
	features []Feature
	defaults map[string]string
	strict   bool
}

// IsCategoricalName reports whether name contains one of markers.
func IsCategoricalName(name string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// NewSchema classifies names in order. Explicit overrides win over the
// marker heuristic; an override naming an unknown feature, or a feature
// listed as both categorical and numeric, is an error.
func NewSchema(names []string, opts SchemaOptions) (*Schema, error) {
	markers := opts.CategoricalMarkers
	if markers == nil {
		markers = DefaultCategoricalMarkers
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = DefaultFills()
	}

	known := make(map[string]bool, len(names))
	for _, name := range names {
		if known[name] {
			return nil, fmt.Errorf("duplicate feature %q", name)
		}
		known[name] = true
	}

	override := make(map[string]FeatureKind)
	for _, list := range []struct {
		names []string
		kind  FeatureKind
	}{{opts.Categorical, Categorical}, {opts.Numeric, Numeric}} {
		for _, name := range list.names {
			if !known[name] {
				return nil, fmt.Errorf("schema override names unknown feature %q", name)
			}
			if prev, ok := override[name]; ok && prev != list.kind {
				return nil, fmt.Errorf("feature %q is listed as both categorical and numeric", name)
			}
			override[name] = list.kind
		}
	}

	s := &Schema{
		features: make([]Feature, len(names)),
		defaults: make(map[string]string, len(defaults)),
		strict:   opts.Strict,
	}
	for i, name := range names {
		kind, ok := override[name]
		if !ok && IsCategoricalName(name, markers) {
			kind = Categorical
		}
		s.features[i] = Feature{Name: name, Kind: kind, Description: opts.Descriptions[name]}
	}
	for name, value := range defaults {
		s.defaults[name] = value
	}
	return s, nil
}

func (s *Schema) Features() []Feature {
	return append([]Feature(nil), s.features...)
}

func (s *Schema) Names() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) Categorical() []string {
	return s.namesOf(Categorical)
}

func (s *Schema) Numeric() []string {
	return s.namesOf(Numeric)
}

func (s *Schema) namesOf(kind FeatureKind) []string {
	names := make([]string, 0, len(s.features))
	for _, f := range s.features {
		if f.Kind == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

// Default returns the fill value configured for column name.
func (s *Schema) Default(name string) (string, bool) {
	v, ok := s.defaults[name]
	return v, ok
}

// DefaultColumns returns the names of all columns with a fill value, sorted.
func (s *Schema) DefaultColumns() []string {
	names := make([]string, 0, len(s.defaults))
	for name := range s.defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Schema) Strict() bool {
	return s.strict
}
