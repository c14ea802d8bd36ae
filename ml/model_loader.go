package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	ModelTypeDecisionTree = "decision_tree"
	ModelTypeRandomForest = "random_forest"
)

// Artifact is the on-disk form of a trained tree model.
type Artifact struct {
	ModelType    string       `json:"model_type"`
	Version      string       `json:"version,omitempty"`
	FeatureNames []string     `json:"feature_names"`
	Classes      []int        `json:"classes"`
	Trees        [][]TreeNode `json:"trees"`
}

func DecodeArtifact(payload []byte) (Artifact, error) {
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrModelCorrupt, err)
	}
	if len(artifact.Trees) == 0 {
		return Artifact{}, fmt.Errorf("%w: no trees", ErrModelCorrupt)
	}
	return artifact, nil
}

// Build turns the artifact into a classifier. modelType may be empty to accept
// whatever the artifact declares.
func (a Artifact) Build(modelType string, schema *Schema) (Classifier, error) {
	if modelType == "" {
		modelType = a.ModelType
	}
	if a.ModelType != "" && a.ModelType != modelType {
		return nil, fmt.Errorf("%w: artifact is %q, configured %q", ErrIncompatibleModel, a.ModelType, modelType)
	}
	if err := checkFeatureNames(a.FeatureNames, schema.Names()); err != nil {
		return nil, err
	}

	classes := make([]ClassCode, len(a.Classes))
	for i, c := range a.Classes {
		classes[i] = ClassCode(c)
	}
	trees := make([]*DecisionTree, len(a.Trees))
	for i, nodes := range a.Trees {
		tree, err := NewDecisionTree(nodes, a.FeatureNames, classes)
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrModelCorrupt, i, err)
		}
		trees[i] = tree
	}

	switch modelType {
	case ModelTypeDecisionTree:
		if len(trees) != 1 {
			return nil, fmt.Errorf("%w: decision tree artifact has %d trees", ErrIncompatibleModel, len(trees))
		}
		return trees[0], nil
	case ModelTypeRandomForest:
		return NewRandomForest(trees, a.FeatureNames)
	default:
		return nil, fmt.Errorf("%w: unsupported model type %q", ErrIncompatibleModel, modelType)
	}
}

func LoadModel(modelType, path string) (Classifier, error) {
	payload, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	artifact, err := DecodeArtifact(payload)
	if err != nil {
		return nil, err
	}
	return artifact.Build(modelType, WineSchema())
}

func readArtifact(path string) ([]byte, error) {
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	return payload, nil
}

func checkFeatureNames(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: artifact has %d features, expected %d", ErrIncompatibleModel, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: feature %d is %q, expected %q", ErrIncompatibleModel, i, got[i], want[i])
		}
	}
	return nil
}
