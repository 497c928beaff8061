package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goobi/goobi-production/pkg/metrics"
	"github.com/goobi/goobi-production/pkg/persistence/file"
	"github.com/goobi/goobi-production/pkg/services"
	"github.com/goobi/goobi-production/pkg/testutil"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := file.NewPersistence(t.TempDir())
	source := testutil.NewSource(testutil.BranchingDiagram("digitization"))
	m := metrics.New()

	api := NewAPI(
		logger,
		services.NewWorkflow(store),
		services.NewTemplates(logger, store, source, services.WithMetrics(m)),
		source,
		m,
	)

	return api.App()
}

func get(t *testing.T, app *fiber.App, target string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Goobi API", body)
}

func TestAPI_Liveness(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/livez")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestAPI_Metrics(t *testing.T) {
	app := setupTestApp(t)

	status, _ := get(t, app, "/diagrams/digitization/preview")
	require.Equal(t, http.StatusOK, status)

	status, body := get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `goobi_template_compilations_total{operation="preview",result="success"} 1`)
}

func TestAPI_Health(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/health")

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"healthy"`)
}
