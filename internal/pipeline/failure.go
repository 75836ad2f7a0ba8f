package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind tags the terminal failure of a conversion. Values are stable:
// they appear in API responses and metric labels.
type FailureKind string

const (
	FailContextUnavailable FailureKind = "context_unavailable"
	FailModelUnavailable   FailureKind = "model_unavailable"
	FailNumericInstability FailureKind = "numeric_instability"
	FailUnparseable        FailureKind = "unparseable"
	FailTimeout            FailureKind = "timeout"
)

// Failure is the tagged terminal error surfaced to callers. The pipeline
// never returns best-effort SQL alongside one.
type Failure struct {
	Kind    FailureKind
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

// StatusCode maps the failure to an HTTP status for the API layer.
func (f *Failure) StatusCode() int {
	switch f.Kind {
	case FailContextUnavailable:
		return http.StatusBadGateway
	case FailModelUnavailable:
		return http.StatusServiceUnavailable
	case FailNumericInstability:
		return http.StatusBadGateway
	case FailUnparseable:
		return http.StatusUnprocessableEntity
	case FailTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func failf(kind FailureKind, cause error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// AsFailure extracts the tagged failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
