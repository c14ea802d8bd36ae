package ml

import (
	"fmt"
)

// Predictor turns a feature vector into a quality label.
type Predictor struct {
	classifier Classifier
	names      []string
}

func NewPredictor(classifier Classifier) *Predictor {
	return &Predictor{
		classifier: classifier,
		names:      classifier.FeatureNames(),
	}
}

// Classify runs the classifier on one vector. The vector's field names must
// match the classifier's training order exactly.
func (p *Predictor) Classify(vector FeatureVector) (QualityLabel, ClassCode, error) {
	if err := p.checkOrder(vector); err != nil {
		return "", 0, err
	}
	code, err := p.classifier.Predict(vector.Values)
	if err != nil {
		return "", 0, fmt.Errorf("predict: %w", err)
	}
	label, err := LabelFor(code)
	if err != nil {
		return "", code, err
	}
	return label, code, nil
}

func (p *Predictor) checkOrder(vector FeatureVector) error {
	if len(vector.Values) != len(p.names) || len(vector.Names) != len(p.names) {
		return fmt.Errorf("%w: classifier expects %d features, got %d names and %d values",
			ErrFeatureCountMismatch, len(p.names), len(vector.Names), len(vector.Values))
	}
	for i, name := range p.names {
		if vector.Names[i] != name {
			return fmt.Errorf("%w: position %d is %q, classifier expects %q",
				ErrFeatureOrderMismatch, i, vector.Names[i], name)
		}
	}
	return nil
}
