package ml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func copyFixture(t *testing.T, name string) string {
	t.Helper()
	payload, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wine_quality_model.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	return path
}

func TestOpenStore(t *testing.T) {
	path := copyFixture(t, "forest.json")
	store, err := OpenStore(path, ModelTypeRandomForest)
	require.NoError(t, err)

	info := store.Info()
	assert.Equal(t, ModelTypeRandomForest, info.Type)
	assert.Equal(t, 3, info.Trees)
	assert.Equal(t, 17, info.Nodes)
	assert.Equal(t, 3, info.Depth)
	assert.Len(t, info.Checksum, 64)
	assert.Equal(t, FeatureNames(), info.Features)
	assert.Equal(t, FeatureNames(), store.Classifier().FeatureNames())
}

func TestOpenStoreAcceptsDeclaredType(t *testing.T) {
	store, err := OpenStore(copyFixture(t, "decision_tree.json"), "")
	require.NoError(t, err)
	assert.Equal(t, ModelTypeDecisionTree, store.Info().Type)
	assert.Equal(t, 1, store.Info().Trees)
	assert.Equal(t, 3, store.Info().Depth)
}

func TestOpenStoreFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("\x80\x04\x95pickle"), 0o600))

	tests := []struct {
		name      string
		path      string
		modelType string
		want      error
	}{
		{"missing", filepath.Join(dir, "nope.json"), ModelTypeRandomForest, ErrModelNotFound},
		{"not json", garbage, ModelTypeRandomForest, ErrModelCorrupt},
		{"swapped features", copyFixture(t, "swapped_features.json"), ModelTypeRandomForest, ErrIncompatibleModel},
		{"cyclic tree", copyFixture(t, "cyclic_tree.json"), ModelTypeRandomForest, ErrModelCorrupt},
		{"type mismatch", copyFixture(t, "forest.json"), ModelTypeDecisionTree, ErrIncompatibleModel},
		{"unknown type", copyFixture(t, "forest.json"), "gradient_boosting", ErrIncompatibleModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(tt.path, tt.modelType)
			assert.Nil(t, store)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStoreSaveIsNoOp(t *testing.T) {
	path := copyFixture(t, "forest.json")
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	stat, err := os.Stat(path)
	require.NoError(t, err)

	store, err := OpenStore(path, ModelTypeRandomForest)
	require.NoError(t, err)

	saved, err := store.Save()
	require.NoError(t, err)
	assert.False(t, saved)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	statAfter, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, stat.ModTime(), statAfter.ModTime())
}

func TestStoreSaveRewritesMissingFile(t *testing.T) {
	path := copyFixture(t, "forest.json")
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	store, err := OpenStore(path, ModelTypeRandomForest)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	saved, err := store.Save()
	require.NoError(t, err)
	assert.True(t, saved)

	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	reopened, err := OpenStore(path, ModelTypeRandomForest)
	require.NoError(t, err)
	assert.Equal(t, store.Info().Checksum, reopened.Info().Checksum)
}

func TestStoreSaveKeepsReplacedArtifact(t *testing.T) {
	path := copyFixture(t, "forest.json")
	store, err := OpenStore(path, "")
	require.NoError(t, err)

	deployed, err := os.ReadFile(filepath.Join("testdata", "decision_tree.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, deployed, 0o600))

	saved, err := store.Save()
	assert.False(t, saved)
	assert.ErrorIs(t, err, ErrModelReplaced)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, deployed, onDisk)

	reopened, err := OpenStore(path, "")
	require.NoError(t, err)
	assert.Equal(t, ModelTypeDecisionTree, reopened.Info().Type)
}
