package engine

import (
	"fmt"
	"net/http"
)

// profileNotFoundError signals an unknown profile id.
type profileNotFoundError struct{ id string }

func (e profileNotFoundError) Error() string { return "profile not found: " + e.id }

func ErrProfileNotFound(id string) error { return profileNotFoundError{id: id} }

// IsProfileNotFound reports whether err indicates a missing profile id.
func IsProfileNotFound(err error) bool {
	_, ok := err.(profileNotFoundError)
	return ok
}

// loadError wraps a failure to materialize weights on a device: missing
// file, incompatible tokenizer, or out-of-memory.
type loadError struct {
	profileID string
	cause     error
}

func (e loadError) Error() string {
	return fmt.Sprintf("load failed: %s: %v", e.profileID, e.cause)
}
func (e loadError) Unwrap() error { return e.cause }

func ErrLoad(profileID string, cause error) error {
	return loadError{profileID: profileID, cause: cause}
}

// IsLoadError reports whether err is a model load failure.
func IsLoadError(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// resourceExhaustedError means every decision in the fallback chain failed.
type resourceExhaustedError struct {
	profileID string
	last      error
}

func (e resourceExhaustedError) Error() string {
	return fmt.Sprintf("no usable device/precision left for %s (last: %v)", e.profileID, e.last)
}
func (e resourceExhaustedError) Unwrap() error { return e.last }

func ErrResourceExhausted(profileID string, last error) error {
	return resourceExhaustedError{profileID: profileID, last: last}
}

// IsResourceExhausted reports whether the whole fallback chain was consumed.
func IsResourceExhausted(err error) bool {
	_, ok := err.(resourceExhaustedError)
	return ok
}

// numericInstabilityError is raised when the output distribution contains
// non-finite or out-of-range probabilities. Retryable with safe parameters.
type numericInstabilityError struct{ attempt int }

func (e numericInstabilityError) Error() string {
	return fmt.Sprintf("non-finite output distribution (attempt %d)", e.attempt)
}

func ErrNumericInstability(attempt int) error { return numericInstabilityError{attempt: attempt} }

// IsNumericInstability reports whether err indicates degenerate output
// probabilities.
func IsNumericInstability(err error) bool {
	_, ok := err.(numericInstabilityError)
	return ok
}

// tooBusyError signals queue timeout/overflow. It carries its own HTTP
// status so the API layer maps backpressure to 429 without a failure kind.
type tooBusyError struct{ profileID string }

func (e tooBusyError) Error() string   { return "too busy: " + e.profileID }
func (e tooBusyError) StatusCode() int { return http.StatusTooManyRequests }

func ErrTooBusy(profileID string) error { return tooBusyError{profileID: profileID} }

// IsTooBusy reports whether err indicates admission backpressure.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}
