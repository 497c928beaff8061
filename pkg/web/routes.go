package web

import "github.com/gofiber/fiber/v3"

// Register mounts the template API on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/templates", h.GetWorkflowTemplates)
	w.Post("/:id/recompile", h.RecompileWorkflow)

	t := router.Group("/templates")
	t.Post("/", h.CreateTemplate)
	t.Get("/:id", h.GetTemplate)

	d := router.Group("/diagrams")
	d.Get("/", h.GetDiagrams)
	d.Post("/preview", h.PreviewDefinition)
	d.Get("/:name/preview", h.PreviewDiagram)

	router.Get("/health", h.HealthCheck)
}
