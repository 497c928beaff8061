package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
	"github.com/goobi/goobi-production/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"tasks", "templates", "rulesets", "dockets", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("goobi_test"),
			postgres.WithUsername("goobi"),
			postgres.WithPassword("goobi"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "dockets", "rulesets", "templates", "tasks", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// Running the migrations again is a no-op.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestPersistence_Workflows(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := models.NewWorkflow("digitization", "digitization")
	require.NoError(t, p.SaveWorkflow(ctx, workflow))
	assert.NotZero(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	duplicate := models.NewWorkflow("digitization", "digitization")
	require.NoError(t, p.SaveWorkflow(ctx, duplicate))

	other := models.NewWorkflow("digitization", "newspaper")
	require.NoError(t, p.SaveWorkflow(ctx, other))

	retrieved, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "digitization", retrieved.Title)
	assert.True(t, retrieved.Active)

	matches, err := p.WorkflowsByTitleAndFile(ctx, "digitization", "digitization")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	retrieved.Active = false
	require.NoError(t, p.SaveWorkflow(ctx, retrieved))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.False(t, all[0].Active)

	_, err = p.WorkflowByID(ctx, 9999)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	missing := &models.Workflow{ID: 9999, Title: "x", File: "x"}
	assert.True(t, persistence.IsWorkflowNotFound(p.SaveWorkflow(ctx, missing)))
}

func TestPersistence_Templates(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := models.NewWorkflow("digitization", "digitization")
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	docket := &models.Docket{Title: "Standard", File: "docket.xsl"}
	require.NoError(t, p.SaveDocket(ctx, docket))

	template := &models.Template{
		Title:      "Digitization",
		OutputName: "digitized",
		WorkflowID: workflow.ID,
		DocketID:   &docket.ID,
		Tasks: []*models.Task{
			{Title: "Scanning", Ordering: 1, TypeImagesWrite: true, WorkflowCondition: "default"},
			{Title: "OCR", Ordering: 2, ScriptName: "ocr", ScriptPath: "/opt/ocr.sh", WorkflowCondition: "x=1"},
			{Title: "QC", Ordering: 2, WorkflowCondition: "x=2"},
		},
	}
	require.NoError(t, p.SaveTemplate(ctx, template))
	assert.NotZero(t, template.ID)

	for _, task := range template.Tasks {
		assert.NotZero(t, task.ID)
		assert.Equal(t, template.ID, task.TemplateID)
	}

	retrieved, err := p.TemplateByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, "digitized", retrieved.OutputName)
	require.NotNil(t, retrieved.DocketID)
	assert.Equal(t, docket.ID, *retrieved.DocketID)
	assert.Nil(t, retrieved.RulesetID)
	require.Len(t, retrieved.Tasks, 3)
	assert.Equal(t, []string{"Scanning", "OCR", "QC"}, titles(retrieved.Tasks))
	assert.Equal(t, "/opt/ocr.sh", retrieved.Tasks[1].ScriptPath)
	assert.True(t, retrieved.Tasks[0].TypeImagesWrite)

	second := &models.Template{Title: "Digitization copy", WorkflowID: workflow.ID}
	require.NoError(t, p.SaveTemplate(ctx, second))

	// Replace the task lists of both templates in one call.
	retrieved.ReplaceTasks([]*models.Task{{Title: "Export", Ordering: 1, WorkflowCondition: "default"}})
	second.ReplaceTasks([]*models.Task{{Title: "Export", Ordering: 1, WorkflowCondition: "default"}})
	require.NoError(t, p.SaveTemplates(ctx, []*models.Template{retrieved, second}))

	templates, err := p.TemplatesByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	for _, tmpl := range templates {
		assert.Equal(t, []string{"Export"}, titles(tmpl.Tasks))
	}

	_, err = p.TemplateByID(ctx, 9999)
	assert.True(t, persistence.IsTemplateNotFound(err))
}

func TestPersistence_SaveTemplatesRollsBack(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := models.NewWorkflow("digitization", "digitization")
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	valid := &models.Template{Title: "Valid", WorkflowID: workflow.ID}
	unknown := &models.Template{ID: 4242, Title: "Unknown", WorkflowID: workflow.ID}

	err := p.SaveTemplates(ctx, []*models.Template{valid, unknown})
	require.Error(t, err)
	assert.True(t, persistence.IsTemplateNotFound(err))

	templates, err := p.TemplatesByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, templates, "first template must not be committed")
}

func TestPersistence_SaveWorkflowTemplate(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := models.NewWorkflow("digitization", "digitization")
	template := &models.Template{
		Title: "Digitization",
		Tasks: []*models.Task{{Title: "Scanning", Ordering: 1, WorkflowCondition: "default"}},
	}

	require.NoError(t, p.SaveWorkflowTemplate(ctx, workflow, template))
	assert.NotZero(t, workflow.ID)
	assert.Equal(t, workflow.ID, template.WorkflowID)

	templates, err := p.TemplatesByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, []string{"Scanning"}, titles(templates[0].Tasks))

	orphan := models.NewWorkflow("newspaper", "newspaper")
	unknown := &models.Template{ID: 4242, Title: "Unknown"}

	err = p.SaveWorkflowTemplate(ctx, orphan, unknown)
	require.Error(t, err)
	assert.True(t, persistence.IsTemplateNotFound(err))
	assert.Zero(t, orphan.ID)

	matches, err := p.WorkflowsByTitleAndFile(ctx, "newspaper", "newspaper")
	require.NoError(t, err)
	assert.Empty(t, matches, "workflow insert must be rolled back")
}

func TestPersistence_Catalogs(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	imported := &models.Ruleset{ID: 7, Title: "Imported", File: "imported.xml"}
	require.NoError(t, p.SaveRuleset(ctx, imported))

	generated := &models.Ruleset{Title: "Generated", File: "generated.xml"}
	require.NoError(t, p.SaveRuleset(ctx, generated))
	assert.Greater(t, generated.ID, int64(7))

	got, err := p.RulesetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, imported, got)

	_, err = p.DocketByID(ctx, 1)
	assert.ErrorIs(t, err, persistence.ErrDocketNotFound)

	_, err = p.RulesetByID(ctx, 999)
	assert.ErrorIs(t, err, persistence.ErrRulesetNotFound)
}

func titles(tasks []*models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}

	return out
}
