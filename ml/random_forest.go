package ml

import (
	"errors"
	"fmt"
)

// RandomForest predicts by majority vote over its trees. Ties go to the
// lowest class code.
type RandomForest struct {
	trees []*DecisionTree
	names []string
}

func NewRandomForest(trees []*DecisionTree, names []string) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	return &RandomForest{
		trees: trees,
		names: append([]string(nil), names...),
	}, nil
}

func (rf *RandomForest) FeatureNames() []string {
	return append([]string(nil), rf.names...)
}

func (rf *RandomForest) Predict(features []float64) (ClassCode, error) {
	if len(rf.trees) == 0 {
		return 0, ErrModelNotTrained
	}
	votes := make(map[ClassCode]int)
	for i, tree := range rf.trees {
		code, err := tree.Predict(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		votes[code]++
	}
	return majorityVote(votes), nil
}

func (rf *RandomForest) Trees() int {
	return len(rf.trees)
}

func (rf *RandomForest) Nodes() int {
	total := 0
	for _, tree := range rf.trees {
		total += tree.Len()
	}
	return total
}

// Depth is the depth of the deepest tree.
func (rf *RandomForest) Depth() int {
	depth := 0
	for _, tree := range rf.trees {
		if d := tree.Depth(); d > depth {
			depth = d
		}
	}
	return depth
}

func majorityVote(votes map[ClassCode]int) ClassCode {
	best := ClassCode(0)
	bestCount := -1
	for code, count := range votes {
		if count > bestCount || (count == bestCount && code < best) {
			best = code
			bestCount = count
		}
	}
	return best
}
