package ml

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ModelInfo describes the artifact a Store was opened from.
type ModelInfo struct {
	Type     string    `json:"type"`
	Version  string    `json:"version,omitempty"`
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Trees    int       `json:"trees"`
	Nodes    int       `json:"nodes"`
	Depth    int       `json:"depth"`
	Features []string  `json:"features"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Store owns the classifier for the lifetime of the process.
type Store struct {
	path       string
	raw        []byte
	classifier Classifier
	info       ModelInfo
}

// OpenStore loads and validates the artifact at path. Any error means the
// process has nothing to serve.
func OpenStore(path, modelType string) (*Store, error) {
	raw, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	artifact, err := DecodeArtifact(raw)
	if err != nil {
		return nil, err
	}
	classifier, err := artifact.Build(modelType, WineSchema())
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	info := ModelInfo{
		Type:     artifact.ModelType,
		Version:  artifact.Version,
		Path:     path,
		Checksum: hex.EncodeToString(sum[:]),
		Features: classifier.FeatureNames(),
		LoadedAt: time.Now(),
	}
	if info.Type == "" {
		info.Type = modelType
	}
	switch c := classifier.(type) {
	case *RandomForest:
		info.Trees, info.Nodes, info.Depth = c.Trees(), c.Nodes(), c.Depth()
	case *DecisionTree:
		info.Trees, info.Nodes, info.Depth = 1, c.Len(), c.Depth()
	}

	return &Store{
		path:       path,
		raw:        raw,
		classifier: classifier,
		info:       info,
	}, nil
}

func (s *Store) Classifier() Classifier {
	return s.classifier
}

func (s *Store) Info() ModelInfo {
	info := s.info
	info.Features = append([]string(nil), s.info.Features...)
	return info
}

// Save writes the artifact back exactly as it was loaded. The classifier is
// never mutated, so when the file on disk still matches nothing is written.
// A file that was replaced on disk is left alone and ErrModelReplaced is
// returned; only a missing file is rewritten. It reports whether the file
// was written.
func (s *Store) Save() (bool, error) {
	current, err := os.ReadFile(s.path)
	switch {
	case err == nil && bytes.Equal(current, s.raw):
		return false, nil
	case err == nil:
		return false, fmt.Errorf("%w: %s", ErrModelReplaced, s.path)
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("read model %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(s.raw); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return false, err
	}
	return true, nil
}
