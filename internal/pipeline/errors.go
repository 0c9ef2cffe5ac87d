package pipeline

import (
	"errors"
	"fmt"

	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/domain"
)

// ErrFatalConfig aborts a run before the first stage when a required
// collaborator is missing.
var ErrFatalConfig = errors.New("fatal configuration")

// SkipError signals that a stage declined to run; the pipeline continues.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "stage skipped: " + e.Reason
}

// Skip builds a SkipError.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// FailureError carries the failure taxonomy kind alongside the cause.
type FailureError struct {
	Kind domain.FailureKind
	Err  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// Failure wraps err with a taxonomy kind.
func Failure(kind domain.FailureKind, err error) error {
	return &FailureError{Kind: kind, Err: err}
}

// Failf wraps a formatted error with a taxonomy kind.
func Failf(kind domain.FailureKind, format string, args ...interface{}) error {
	return &FailureError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify maps an error from a stage invocation onto the failure taxonomy.
func Classify(err error) domain.FailureKind {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if genai.IsRateLimited(err) {
		return domain.FailureRateLimited
	}
	return domain.FailureCollaboratorUnavailable
}
