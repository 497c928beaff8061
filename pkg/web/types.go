// Package web provides HTTP request and response types for the template API.
package web

import "github.com/goobi/goobi-production/pkg/models"

// CreateTemplateRequest names the diagram to compile into a new template.
type CreateTemplateRequest struct {
	Diagram string `json:"diagram" validate:"required,min=1,excludesall=/\\"`
}

// RecompileResponse lists the templates that received a new task list.
type RecompileResponse struct {
	WorkflowID int64              `json:"workflow_id"`
	Templates  []*models.Template `json:"templates"`
}

// DiagramsResponse lists the diagram names served by the diagram source.
type DiagramsResponse struct {
	Diagrams []string `json:"diagrams"`
}
