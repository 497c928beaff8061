// Package services assembles compiled templates and exposes the operations used by the HTTP API
// and the command line tools.
package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goobi/goobi-production/pkg/compiler"
	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// ErrAmbiguousWorkflow is returned when more than one workflow matches a (title, file) pair.
	ErrAmbiguousWorkflow = errors.New("more than one workflow matches title and file")

	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrDiagramRequired  = errors.New("diagram name is required")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
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

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError reports whether err was caused by the request or the diagram content rather
// than by the platform. Such errors map to 4xx responses.
func IsValidationError(err error) bool {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return true
	}

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidTemplate) ||
		errors.Is(err, ErrDiagramRequired) ||
		errors.Is(err, compiler.ErrCycleDetected) ||
		errors.Is(err, compiler.ErrUnstructuredGateway) ||
		(diagram.IsLoadError(err) && !diagram.IsNotFound(err))
}

// IsConflictError reports errors caused by the state of stored data (HTTP 409).
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAmbiguousWorkflow)
}

// IsNotFound reports a missing diagram, workflow, template, docket or ruleset.
func IsNotFound(err error) bool {
	return diagram.IsNotFound(err) || persistence.IsNotFound(err)
}
