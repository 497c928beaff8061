// Package web provides HTTP handlers and REST API endpoints for compiling diagrams into
// templates.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/services"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	templateService *services.Templates
	diagrams        diagram.Source
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	templateService *services.Templates,
	diagrams diagram.Source,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		templateService: templateService,
		diagrams:        diagrams,
		validator:       validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		if services.IsValidationError(err) {
			return badRequest(c, err.Error())
		}

		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{
		Title:     c.Query("title"),
		File:      c.Query("file"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return nil, err
		}

		req.Active = &active
	}

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Workflow ID must be a positive integer")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflowTemplates(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Workflow ID must be a positive integer")
	}

	templates, err := h.workflowService.Templates(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(templates)
}

func (h *APIHandlers) RecompileWorkflow(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Workflow ID must be a positive integer")
	}

	templates, err := h.templateService.RecompileWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RecompileResponse{WorkflowID: id, Templates: templates})
}

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	var req CreateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template, err := h.templateService.Create(c.Context(), req.Diagram)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "Template ID must be a positive integer")
	}

	template, err := h.workflowService.Template(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) GetDiagrams(c fiber.Ctx) error {
	names, err := h.diagrams.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(DiagramsResponse{Diagrams: names})
}

func (h *APIHandlers) PreviewDiagram(c fiber.Ctx) error {
	preview, err := h.templateService.Preview(c.Context(), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

// PreviewDefinition compiles the YAML or JSON definition in the request body.
func (h *APIHandlers) PreviewDefinition(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "Request body must contain a diagram definition")
	}

	name := c.Query("name", "inline")

	preview, err := h.templateService.PreviewDefinition(c.Context(), name, body)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Goobi API is unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if repOk {
		status = "healthy"
		message = "Goobi API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func parseID(c fiber.Ctx, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil {
		return 0, err
	}

	if id <= 0 {
		return 0, strconv.ErrRange
	}

	return id, nil
}
