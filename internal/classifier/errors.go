package classifier

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelNotLoaded is returned by Classify when no model is loaded.
	ErrModelNotLoaded = errors.New("no model loaded")

	// ErrUnsupported marks a calling convention the loaded model does not expose.
	ErrUnsupported = errors.New("calling convention not supported by model")
)

// ModelLoadError reports a model asset that is missing, unreadable or unusable.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// Attempt records the failure of one strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// InferenceError is returned when every calling convention failed for one input.
type InferenceError struct {
	Attempts []Attempt
}

func (e *InferenceError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return "inference failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every attempt's error to errors.Is and errors.As.
func (e *InferenceError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
