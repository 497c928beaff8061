// Package main provides the Goobi template API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/metrics"
	"github.com/goobi/goobi-production/pkg/services"
	"github.com/goobi/goobi-production/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger    *slog.Logger
	workflows *services.Workflow
	templates *services.Templates
	diagrams  diagram.Source
	metrics   *metrics.Metrics
	validate  *validator.Validate
	app       *fiber.App
}

func NewAPI(
	logger *slog.Logger,
	workflows *services.Workflow,
	templates *services.Templates,
	diagrams diagram.Source,
	m *metrics.Metrics,
) *API {
	return &API{
		logger:    logger,
		workflows: workflows,
		templates: templates,
		diagrams:  diagrams,
		metrics:   m,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflows, a.templates, a.diagrams, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Goobi API")
	})

	if a.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))
	}

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	a.app = a.App()

	return a.app.Listen(":" + strconv.Itoa(port))
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.app == nil {
		return nil
	}

	return a.app.ShutdownWithContext(ctx)
}
