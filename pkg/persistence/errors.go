package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTemplateNotFound indicates a template was not found by the given identifier.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrDocketNotFound indicates a docket was not found by the given identifier.
	ErrDocketNotFound = errors.New("docket not found")

	// ErrRulesetNotFound indicates a ruleset was not found by the given identifier.
	ErrRulesetNotFound = errors.New("ruleset not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save")
	WorkflowID int64  // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %d: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op string, workflowID int64, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// TemplateError wraps template-related errors with additional context.
type TemplateError struct {
	Op         string
	TemplateID int64
	Err        error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s operation failed for template %d: %v", e.Op, e.TemplateID, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

func (e *TemplateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewTemplateError(op string, templateID int64, err error) *TemplateError {
	return &TemplateError{
		Op:         op,
		TemplateID: templateID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsNotFound reports whether err is any of the not-found errors of this package.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrDocketNotFound) ||
		errors.Is(err, ErrRulesetNotFound)
}
