package services

import (
	"errors"
	"fmt"
	"strings"

	"binder/internal/queue"
)

var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// ErrorKind classifies a stage failure for structured logs and status routing.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindExternal      ErrorKind = "external"
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// ServiceError carries structured failure context so the workflow manager and
// log pipeline can report stage errors without parsing message strings. The
// Marker should be one of the exported sentinel errors above; optional fields
// such as Hint and DetailPath surface operator guidance when available.
type ServiceError struct {
	Marker     error
	Kind       ErrorKind
	Stage      string
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Cause      error
}

func (e *ServiceError) Error() string {
	marker := e.Marker
	if marker == nil {
		marker = ErrTransient
	}
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", marker.Error(), detail, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", marker.Error(), detail)
}

// Unwrap exposes both the classification marker and the underlying cause to
// errors.Is and errors.As.
func (e *ServiceError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds a stage error that includes stage context while tagging it with
// the provided marker for later status classification. A nil marker defaults
// to ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Kind:      kindOf(marker),
		Stage:     stage,
		Operation: operation,
		Message:   message,
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a stage failure used for logging.
type ErrorDetails struct {
	Kind       ErrorKind
	Stage      string
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Cause      error
}

// Details extracts structured context from a stage error. Errors not built by
// this package still receive a kind derived from their markers.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: ErrorKindUnknown}
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr != nil {
		kind := svcErr.Kind
		if kind == "" {
			kind = kindOf(svcErr.Marker)
		}
		return ErrorDetails{
			Kind:       kind,
			Stage:      svcErr.Stage,
			Operation:  svcErr.Operation,
			Message:    strings.TrimSpace(svcErr.Message),
			Code:       svcErr.Code,
			Hint:       svcErr.Hint,
			DetailPath: svcErr.DetailPath,
			Cause:      svcErr.Cause,
		}
	}
	return ErrorDetails{Kind: kindOf(err)}
}

// FailureStatus maps a stage error to the queue status the workflow manager
// should persist after the stage fails. Validation-class failures land in
// review so an operator can fix the scan by hand; everything else is a real
// failure eligible for retry.
func FailureStatus(err error) queue.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return queue.StatusReview
	default:
		return queue.StatusFailed
	}
}

// IsRetryable reports whether the error carries a transport-class marker that
// warrants another attempt against the same external service.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrExternalService)
}

func kindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindUnknown
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrConfiguration):
		return ErrorKindConfiguration
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrExternalService):
		return ErrorKindExternal
	case errors.Is(err, ErrTransient):
		return ErrorKindTransient
	default:
		return ErrorKindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
