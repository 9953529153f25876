package ml

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned while no model load has completed successfully.
var ErrNotReady = errors.New("model not ready")

// LoadError reports that the model artifact could not be fetched or parsed.
// The caller decides whether to attempt a fresh load; the package never
// retries on its own.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InferenceError reports that the scoring function failed or produced no
// output for a prediction call. The call is terminal; no partial result is
// ever exposed.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
