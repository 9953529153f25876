package features

import "fmt"

// NegativeFeatureError reports a raw input below zero.
type NegativeFeatureError struct {
	Name  string
	Value float64
}

func (e *NegativeFeatureError) Error() string {
	return fmt.Sprintf("feature %s must be non-negative, got %g", e.Name, e.Value)
}
