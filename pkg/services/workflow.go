package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// Workflow serves read access to workflows and their templates.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	Title  string
	File   string
	Active *bool

	// Sorting
	SortBy    string `validate:"oneof=id title created_at"`
	SortOrder string `validate:"oneof=asc desc"`
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	var (
		workflows []*models.Workflow
		err       error
	)

	if req.Title != "" && req.File != "" {
		workflows, err = w.persistence.WorkflowsByTitleAndFile(ctx, req.Title, req.File)
	} else {
		workflows, err = w.persistence.Workflows(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows = slices.DeleteFunc(workflows, func(wf *models.Workflow) bool {
		return (req.Title != "" && wf.Title != req.Title) ||
			(req.File != "" && wf.File != req.File) ||
			(req.Active != nil && wf.Active != *req.Active)
	})

	slices.SortStableFunc(workflows, func(a, b *models.Workflow) int {
		var c int

		switch req.SortBy {
		case "title":
			c = cmp.Compare(a.Title, b.Title)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = cmp.Compare(a.ID, b.ID)
		}

		if req.SortOrder == "desc" {
			return -c
		}

		return c
	})

	total := len(workflows)
	start := min(req.Offset, total)
	end := min(start+req.Limit, total)

	return &ListWorkflowsResponse{
		Workflows:   workflows[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "id"
	}

	if req.SortOrder == "" {
		req.SortOrder = "asc"
	}

	allowedSorts := []string{"id", "title", "created_at"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	req.Title = strings.TrimSpace(req.Title)
	req.File = strings.TrimSpace(req.File)

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id int64) (*models.Workflow, error) {
	return w.persistence.WorkflowByID(ctx, id)
}

// Templates returns the templates of a workflow, failing when the workflow does not exist.
func (w *Workflow) Templates(ctx context.Context, workflowID int64) ([]*models.Template, error) {
	if _, err := w.persistence.WorkflowByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return w.persistence.TemplatesByWorkflow(ctx, workflowID)
}

// Template retrieves a template with its tasks.
func (w *Workflow) Template(ctx context.Context, id int64) (*models.Template, error) {
	return w.persistence.TemplateByID(ctx, id)
}
