package ml

import (
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// FeatureCollector holds the current value of every schema field.
// Values start at their defaults and only ever hold accepted input, so
// Collect always yields a complete vector.
type FeatureCollector struct {
	schema *Schema
	values []float64
}

func NewFeatureCollector(schema *Schema) *FeatureCollector {
	return &FeatureCollector{
		schema: schema,
		values: schema.Defaults(),
	}
}

// Set assigns a value to a field. A rejected value leaves the field unchanged.
func (c *FeatureCollector) Set(name string, value float64) error {
	field, idx, ok := c.schema.Field(name)
	if !ok {
		return &FieldError{Field: name, Value: value, Err: ErrUnknownField}
	}
	if err := field.Check(value); err != nil {
		return err
	}
	c.values[idx] = value
	return nil
}

// SetString parses raw form input before applying Set.
func (c *FeatureCollector) SetString(name, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if _, _, ok := c.schema.Field(name); !ok {
		return &FieldError{Field: name, Raw: raw, Err: ErrUnknownField}
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return &FieldError{Field: name, Raw: raw, Err: ErrNotNumeric}
	}
	if err := c.Set(name, value); err != nil {
		if fe, ok := err.(*FieldError); ok {
			fe.Raw = raw
		}
		return err
	}
	return nil
}

// Apply sets every field present in input. All failures are returned
// together; fields that were accepted keep their new value.
func (c *FeatureCollector) Apply(input map[string]string) error {
	var errs error
	for _, name := range c.schema.Names() {
		raw, ok := input[name]
		if !ok {
			continue
		}
		errs = multierr.Append(errs, c.SetString(name, raw))
	}
	for name, raw := range input {
		if _, _, ok := c.schema.Field(name); !ok {
			errs = multierr.Append(errs, &FieldError{Field: name, Raw: raw, Err: ErrUnknownField})
		}
	}
	return errs
}

// ApplyValues is Apply for already numeric input.
func (c *FeatureCollector) ApplyValues(input map[string]float64) error {
	var errs error
	for _, name := range c.schema.Names() {
		value, ok := input[name]
		if !ok {
			continue
		}
		errs = multierr.Append(errs, c.Set(name, value))
	}
	for name, value := range input {
		if _, _, ok := c.schema.Field(name); !ok {
			errs = multierr.Append(errs, &FieldError{Field: name, Value: value, Err: ErrUnknownField})
		}
	}
	return errs
}

func (c *FeatureCollector) Value(name string) (float64, bool) {
	_, idx, ok := c.schema.Field(name)
	if !ok {
		return 0, false
	}
	return c.values[idx], true
}

// Collect assembles the current values into a vector in schema order.
func (c *FeatureCollector) Collect() (FeatureVector, error) {
	return c.schema.Vector(c.values)
}
