package ml

// ClassCode is the raw output of a classifier.
type ClassCode int

// Classifier is a trained model. Implementations must be safe for concurrent
// use once loaded.
type Classifier interface {
	// FeatureNames is the input order the model was trained on.
	FeatureNames() []string
	Predict(features []float64) (ClassCode, error)
}

// QualityLabel is the human readable class of a wine.
type QualityLabel string

const (
	QualityLow    QualityLabel = "Low"
	QualityMedium QualityLabel = "Medium"
	QualityHigh   QualityLabel = "High"
)

var qualityLabels = map[ClassCode]QualityLabel{
	0: QualityLow,
	1: QualityMedium,
	2: QualityHigh,
}

// LabelFor maps a class code to its label.
func LabelFor(code ClassCode) (QualityLabel, error) {
	label, ok := qualityLabels[code]
	if !ok {
		return "", &UnmappedClassCodeError{Code: code}
	}
	return label, nil
}

// QualityLabels lists the labels in class code order.
func QualityLabels() []QualityLabel {
	return []QualityLabel{QualityLow, QualityMedium, QualityHigh}
}
