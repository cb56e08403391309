// Package services provides the application service layer between the HTTP
// handlers and the engine, persistence and profile collaborators.
package services

import (
	"errors"
	"fmt"

	"github.com/castline/castline/pkg/content"
	"github.com/castline/castline/pkg/persistence"
	"github.com/castline/castline/pkg/profiles"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrContentRequired    = errors.New("exactly one of content and content_ref is required")
	ErrNameRequired       = errors.New("workflow name is required")
	ErrUnknownProfile     = errors.New("unknown episode profile")
	ErrTranscriptNotReady = errors.New("workflow has not completed; no transcript exists")
	ErrWorkflowNotFound   = persistence.ErrWorkflowNotFound
	ErrContentNotResolved = errors.New("content reference could not be resolved")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrContentRequired) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrContentNotResolved)
}

// IsNotFoundError checks if an error should map to HTTP 404. A request that
// names a profile the catalog does not carry is a lookup miss, not a shape
// problem, so it lands here.
func IsNotFoundError(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound) ||
		errors.Is(err, ErrUnknownProfile) ||
		errors.Is(err, profiles.ErrEpisodeProfileNotFound) ||
		errors.Is(err, profiles.ErrSpeakerProfileNotFound) ||
		errors.Is(err, content.ErrContentNotFound)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTranscriptNotReady)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a not-found error with context.
func NewNotFoundError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
