package ml

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"companystatus/frame"
)

// Pool is a frame converted into the form a Model consumes: numeric columns
// parsed to float64 (missing values as NaN) and categorical columns kept as
// normalized text.
type Pool struct {
	features    []string
	categorical []bool
	numeric     [][]float64
	text        [][]string
}

// NewPool converts t, declaring the named columns categorical. Every name in
// categorical must be a column of t.
func NewPool(t *frame.Table, categorical []string) (*Pool, error) {
	columns := t.Columns()
	isCat := make([]bool, len(columns))
	position := make(map[string]int, len(columns))
	for j, name := range columns {
		position[name] = j
	}
	for _, name := range categorical {
		j, ok := position[name]
		if !ok {
			return nil, &InferenceError{Row: -1, Feature: name, Err: errors.New("categorical feature is not a column")}
		}
		isCat[j] = true
	}

	p := &Pool{
		features:    columns,
		categorical: isCat,
		numeric:     make([][]float64, t.Len()),
		text:        make([][]string, t.Len()),
	}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		nums := make([]float64, len(columns))
		texts := make([]string, len(columns))
		for j, c := range row {
			if isCat[j] {
				if !c.Valid {
					return nil, &InferenceError{Row: i, Feature: columns[j], Err: errors.New("categorical value is missing")}
				}
				texts[j] = norm.NFC.String(c.Value)
				continue
			}
			v, err := parseNumeric(c)
			if err != nil {
				return nil, &InferenceError{Row: i, Feature: columns[j], Err: err}
			}
			nums[j] = v
		}
		p.numeric[i] = nums
		p.text[i] = texts
	}
	return p, nil
}

func parseNumeric(c frame.Cell) (float64, error) {
	s := strings.TrimSpace(c.Value)
	if !c.Valid || s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to a number", c.Value)
	}
	return v, nil
}

// Len returns the number of rows.
func (p *Pool) Len() int {
	return len(p.numeric)
}

// FeatureNames returns the pool's column names in order.
func (p *Pool) FeatureNames() []string {
	return append([]string(nil), p.features...)
}

// CategoricalIndices returns the positions of the categorical columns.
func (p *Pool) CategoricalIndices() []int {
	var indices []int
	for j, cat := range p.categorical {
		if cat {
			indices = append(indices, j)
		}
	}
	return indices
}
