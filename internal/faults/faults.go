// Package faults encodes the error taxonomy shared by workflows and
// activities. Transient errors surface as ordinary errors and are absorbed by
// activity retry policies; validation and policy errors are non-retryable and
// fail the instance immediately; degraded conditions are not errors at all
// and travel as result flags.
package faults

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// Error classes recorded on terminal workflow results and used as Temporal
// application error types so retry policies can skip the non-retryable ones.
const (
	ClassTransient  = "transient"
	ClassValidation = "validation"
	ClassPolicy     = "policy"
	ClassCancelled  = "cancelled"
)

// NonRetryableClasses lists the error types activity retry policies must not
// retry.
func NonRetryableClasses() []string {
	return []string{ClassValidation, ClassPolicy}
}

// Validationf builds a non-retryable validation error (malformed subject,
// unknown workflow kind).
func Validationf(format string, args ...interface{}) error {
	return temporal.NewNonRetryableApplicationError(fmt.Sprintf(format, args...), ClassValidation, nil)
}

// Policyf builds a non-retryable policy rejection.
func Policyf(format string, args ...interface{}) error {
	return temporal.NewNonRetryableApplicationError(fmt.Sprintf(format, args...), ClassPolicy, nil)
}

// Transientf wraps a provider failure so the retry policy takes over.
func Transientf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Classify maps a terminal workflow error to its taxonomy class.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if temporal.IsCanceledError(err) {
		return ClassCancelled
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case ClassValidation:
			return ClassValidation
		case ClassPolicy:
			return ClassPolicy
		}
	}
	return ClassTransient
}

// IsNonRetryable reports whether the error belongs to a fail-fast class.
func IsNonRetryable(err error) bool {
	c := Classify(err)
	return c == ClassValidation || c == ClassPolicy
}
