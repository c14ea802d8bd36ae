package ml

import (
	"errors"
	"fmt"
)

// DecisionTree is a binary tree stored in pre-order: every child index is
// greater than its parent's.
type DecisionTree struct {
	nodes []TreeNode
	names []string
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree checks the node layout against the feature names and the
// class codes the artifact declares.
func NewDecisionTree(nodes []TreeNode, names []string, classes []ClassCode) (*DecisionTree, error) {
	dt := &DecisionTree{
		nodes: append([]TreeNode(nil), nodes...),
		names: append([]string(nil), names...),
	}
	if err := dt.validate(classes); err != nil {
		return nil, err
	}
	return dt, nil
}

func (dt *DecisionTree) FeatureNames() []string {
	return append([]string(nil), dt.names...)
}

func (dt *DecisionTree) Predict(features []float64) (ClassCode, error) {
	if len(dt.nodes) == 0 {
		return 0, ErrModelNotTrained
	}
	if len(features) != len(dt.names) {
		return 0, fmt.Errorf("%w: expected %d, got %d", ErrFeatureCountMismatch, len(dt.names), len(features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return ClassCode(node.ClassLabel), nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// Len is the number of nodes.
func (dt *DecisionTree) Len() int {
	return len(dt.nodes)
}

func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	return dt.depth(0)
}

func (dt *DecisionTree) depth(idx int) int {
	node := dt.nodes[idx]
	if node.IsLeaf {
		return 1
	}
	left := dt.depth(node.LeftChild)
	right := dt.depth(node.RightChild)
	if left > right {
		return left + 1
	}
	return right + 1
}

func (dt *DecisionTree) validate(classes []ClassCode) error {
	if len(dt.nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	known := make(map[ClassCode]bool, len(classes))
	for _, c := range classes {
		known[c] = true
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if len(known) > 0 && !known[ClassCode(node.ClassLabel)] {
				return fmt.Errorf("node %d: class %d not declared", i, node.ClassLabel)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(dt.names) {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.nodes) {
				return fmt.Errorf("node %d: invalid child %d", i, child)
			}
		}
	}
	return nil
}
