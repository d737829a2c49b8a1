package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or out-of-range input data. It aborts
// only the affected company's pipeline, never a whole batch.
type ValidationError struct {
	Subject string // company or product identifier
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s: %s: %s", e.Subject, e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// InsufficientHistoryError reports a forecast request against a series
// shorter than the model's minimum lookback. Forecasting is skipped; the
// current-score evaluation is still returned by callers.
type InsufficientHistoryError struct {
	Got  int
	Need int
}

func (e InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: got %d periods, need at least %d", e.Got, e.Need)
}

// IsInsufficientHistory reports whether err is (or wraps) an
// InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var ie InsufficientHistoryError
	return errors.As(err, &ie)
}

// NotFoundError reports a lookup for an entity that does not exist.
type NotFoundError struct {
	Kind string // "company", "product", "evaluation"
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne NotFoundError
	return errors.As(err, &ne)
}

// ConfigurationError reports an invalid static table or registry (bucket
// gaps, weight sums, unknown condition names). Fatal at startup or catalog
// import; never discovered per-request.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Component, e.Message)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}
