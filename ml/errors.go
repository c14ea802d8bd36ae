package ml

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	ErrUnknownField         = errors.New("unknown field")
	ErrOutOfRange           = errors.New("value out of range")
	ErrNotInteger           = errors.New("value must be a whole number")
	ErrNotNumeric           = errors.New("value is not a number")
	ErrFeatureCountMismatch = errors.New("feature count mismatch")
	ErrFeatureOrderMismatch = errors.New("feature order mismatch")
	ErrUnmappedClassCode    = errors.New("unmapped class code")

	ErrModelNotFound     = errors.New("model artifact not found")
	ErrModelCorrupt      = errors.New("model artifact is corrupt")
	ErrIncompatibleModel = errors.New("model artifact is incompatible")
	ErrModelNotTrained   = errors.New("model not trained")
	ErrModelReplaced     = errors.New("model artifact was replaced on disk")
)

// FieldError is a rejected input for a single field.
type FieldError struct {
	Field string
	Value float64
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("%s: %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("%s: %g: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldErrors flattens an error produced by the collector into its per-field parts.
// Errors that are not field errors are dropped.
func FieldErrors(err error) []*FieldError {
	var out []*FieldError
	for _, e := range multierr.Errors(err) {
		var fe *FieldError
		if errors.As(e, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// UnmappedClassCodeError is returned when the classifier emits a code with no label.
type UnmappedClassCodeError struct {
	Code ClassCode
}

func (e *UnmappedClassCodeError) Error() string {
	return fmt.Sprintf("unmapped class code %d", int(e.Code))
}

func (e *UnmappedClassCodeError) Is(target error) bool {
	return target == ErrUnmappedClassCode
}
