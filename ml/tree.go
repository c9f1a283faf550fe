package ml

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// Tree is one boosted tree stored as a flat pre-order node list. Node 0 is
// the root and every child index is greater than its parent's.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`

	categories []map[string]struct{}
}

type TreeNode struct {
	FeatureIdx  int       `json:"feature_idx"`
	Threshold   float64   `json:"threshold"`
	Categories  []string  `json:"categories,omitempty"`
	DefaultLeft bool      `json:"default_left"`
	LeftChild   int       `json:"left_child"`
	RightChild  int       `json:"right_child"`
	Values      []float64 `json:"values,omitempty"`
	IsLeaf      bool      `json:"is_leaf"`
}

func (t *Tree) prepare(isCat []bool, width int) error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	t.categories = make([]map[string]struct{}, len(t.Nodes))
	for i, node := range t.Nodes {
		if node.IsLeaf {
			if len(node.Values) != width {
				return fmt.Errorf("node %d: leaf has %d values, want %d", i, len(node.Values), width)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(isCat) {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if node.LeftChild <= i || node.LeftChild >= len(t.Nodes) ||
			node.RightChild <= i || node.RightChild >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, node.LeftChild, node.RightChild)
		}
		if !isCat[node.FeatureIdx] {
			if len(node.Categories) > 0 {
				return fmt.Errorf("node %d: category split on numeric feature %d", i, node.FeatureIdx)
			}
			continue
		}
		if len(node.Categories) == 0 {
			return fmt.Errorf("node %d: threshold split on categorical feature %d", i, node.FeatureIdx)
		}
		set := make(map[string]struct{}, len(node.Categories))
		for _, c := range node.Categories {
			set[norm.NFC.String(c)] = struct{}{}
		}
		t.categories[i] = set
	}
	return nil
}

// leaf walks the tree for one row and returns the reached leaf's values.
func (t *Tree) leaf(numeric []float64, text []string) []float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.IsLeaf {
			return node.Values
		}
		var left bool
		if set := t.categories[idx]; set != nil {
			_, left = set[text[node.FeatureIdx]]
		} else if v := numeric[node.FeatureIdx]; math.IsNaN(v) {
			left = node.DefaultLeft
		} else {
			left = v <= node.Threshold
		}
		if left {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}
