package ml

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// FieldSpec describes one measurement of a wine sample.
type FieldSpec struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Unit    string  `json:"unit,omitempty"`
	Help    string  `json:"help,omitempty"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Integer bool    `json:"integer"`
}

// Check reports whether v is acceptable for the field.
func (f FieldSpec) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &FieldError{Field: f.Name, Value: v, Err: ErrNotNumeric}
	}
	if f.Integer && v != math.Trunc(v) {
		return &FieldError{Field: f.Name, Value: v, Err: ErrNotInteger}
	}
	if v < f.Min || v > f.Max {
		return &FieldError{Field: f.Name, Value: v, Err: fmt.Errorf("%w [%g, %g]", ErrOutOfRange, f.Min, f.Max)}
	}
	return nil
}

// Step returns the input granularity used by the form.
func (f FieldSpec) Step() string {
	if f.Integer {
		return "1"
	}
	return "any"
}

// Schema is the ordered list of fields the classifier was trained on.
type Schema struct {
	fields []FieldSpec
	index  map[string]int
}

func NewSchema(fields []FieldSpec) *Schema {
	s := &Schema{
		fields: append([]FieldSpec(nil), fields...),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range s.fields {
		s.index[f.Name] = i
	}
	return s
}

func (s *Schema) Len() int {
	return len(s.fields)
}

func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

func (s *Schema) Field(name string) (FieldSpec, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, -1, false
	}
	return s.fields[i], i, true
}

func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) Defaults() []float64 {
	values := make([]float64, len(s.fields))
	for i, f := range s.fields {
		values[i] = f.Default
	}
	return values
}

// Vector validates values against the schema and wraps them in field order.
func (s *Schema) Vector(values []float64) (FeatureVector, error) {
	if len(values) != len(s.fields) {
		return FeatureVector{}, fmt.Errorf("%w: expected %d values, got %d", ErrFeatureCountMismatch, len(s.fields), len(values))
	}
	var errs error
	for i, f := range s.fields {
		errs = multierr.Append(errs, f.Check(values[i]))
	}
	if errs != nil {
		return FeatureVector{}, errs
	}
	return FeatureVector{
		Names:  s.Names(),
		Values: append([]float64(nil), values...),
	}, nil
}

// FeatureVector is one wine sample in the classifier's input order.
type FeatureVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

func (v FeatureVector) Len() int {
	return len(v.Values)
}

// Map returns the vector keyed by field name.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Names))
	for i, name := range v.Names {
		if i < len(v.Values) {
			m[name] = v.Values[i]
		}
	}
	return m
}

var wineFields = []FieldSpec{
	{Name: "fixed_acidity", Label: "Fixed Acidity", Unit: "g/dm³", Help: "Amount of fixed acids in g/dm³.", Min: 4.0, Max: 16.0, Default: 7.4},
	{Name: "volatile_acidity", Label: "Volatile Acidity", Unit: "g/dm³", Help: "Amount of volatile acids in g/dm³.", Min: 0.1, Max: 1.5, Default: 0.7},
	{Name: "citric_acid", Label: "Citric Acid", Unit: "g/dm³", Help: "Amount of citric acid in g/dm³.", Min: 0.0, Max: 1.0, Default: 0.0},
	{Name: "residual_sugar", Label: "Residual Sugar", Unit: "g/dm³", Help: "Amount of residual sugar in g/dm³.", Min: 0.5, Max: 15.0, Default: 1.9},
	{Name: "chlorides", Label: "Chlorides", Unit: "g/dm³", Help: "Amount of chlorides in g/dm³.", Min: 0.01, Max: 0.2, Default: 0.076},
	{Name: "free_sulfur_dioxide", Label: "Free Sulfur Dioxide", Unit: "mg/dm³", Help: "Free SO₂ in mg/dm³.", Min: 1, Max: 75, Default: 11, Integer: true},
	{Name: "total_sulfur_dioxide", Label: "Total Sulfur Dioxide", Unit: "mg/dm³", Help: "Total SO₂ in mg/dm³.", Min: 6, Max: 300, Default: 34, Integer: true},
	{Name: "density", Label: "Density", Unit: "g/cm³", Help: "Density of the wine (g/cm³).", Min: 0.990, Max: 1.005, Default: 0.9978},
	{Name: "ph", Label: "pH", Help: "pH value.", Min: 2.5, Max: 4.5, Default: 3.51},
	{Name: "sulphates", Label: "Sulphates", Unit: "g/dm³", Help: "Sulphates in g/dm³.", Min: 0.3, Max: 2.0, Default: 0.56},
	{Name: "alcohol", Label: "Alcohol", Unit: "% vol", Help: "Alcohol content (% vol).", Min: 8.0, Max: 15.0, Default: 9.4},
}

// WineSchema returns the eleven wine chemistry fields in training order.
func WineSchema() *Schema {
	return NewSchema(wineFields)
}

func FeatureNames() []string {
	return WineSchema().Names()
}
