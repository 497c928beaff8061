// Package postgresql provides PostgreSQL persistence for workflows, templates, dockets and rulesets.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
	"github.com/goobi/goobi-production/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	templateRepo *TemplateRepository
	catalogRepo  *CatalogRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger),
		templateRepo: NewTemplateRepository(database, logger),
		catalogRepo:  NewCatalogRepository(database),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Workflows returns all workflows from the database.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx)
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id int64) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) WorkflowsByTitleAndFile(ctx context.Context, title, file string) ([]*models.Workflow, error) {
	return p.workflowRepo.FindByTitleAndFile(ctx, title, file)
}

// SaveWorkflow saves a workflow to the database.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

func (p *Persistence) TemplateByID(ctx context.Context, id int64) (*models.Template, error) {
	return p.templateRepo.GetByID(ctx, id)
}

func (p *Persistence) TemplatesByWorkflow(ctx context.Context, workflowID int64) ([]*models.Template, error) {
	return p.templateRepo.ListByWorkflow(ctx, workflowID)
}

func (p *Persistence) SaveTemplate(ctx context.Context, template *models.Template) error {
	return p.templateRepo.SaveAll(ctx, []*models.Template{template})
}

// SaveTemplates stores all templates in a single transaction.
func (p *Persistence) SaveTemplates(ctx context.Context, templates []*models.Template) error {
	return p.templateRepo.SaveAll(ctx, templates)
}

// SaveWorkflowTemplate inserts workflow when it is new and stores template under it, in one
// transaction.
func (p *Persistence) SaveWorkflowTemplate(ctx context.Context, workflow *models.Workflow, template *models.Template) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
		}
	}()

	newWorkflow := workflow.ID == 0
	newTemplate := template.ID == 0

	err = p.saveWorkflowTemplate(ctx, tx, workflow, template)
	if err == nil {
		err = tx.Commit()
		if err != nil {
			err = fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	if err != nil {
		if newWorkflow {
			workflow.ID = 0
		}

		if newTemplate {
			template.ID = 0
		}

		return err
	}

	return nil
}

func (p *Persistence) saveWorkflowTemplate(ctx context.Context, tx *sql.Tx, workflow *models.Workflow, template *models.Template) error {
	if workflow.ID == 0 {
		if err := p.workflowRepo.save(ctx, tx, workflow); err != nil {
			return err
		}
	}

	template.WorkflowID = workflow.ID

	if err := p.templateRepo.save(ctx, tx, template, time.Now().UTC()); err != nil {
		return persistence.NewTemplateError("SaveWorkflowTemplate", template.ID, err)
	}

	return nil
}

func (p *Persistence) DocketByID(ctx context.Context, id int64) (*models.Docket, error) {
	return p.catalogRepo.DocketByID(ctx, id)
}

func (p *Persistence) SaveDocket(ctx context.Context, docket *models.Docket) error {
	return p.catalogRepo.SaveDocket(ctx, docket)
}

func (p *Persistence) RulesetByID(ctx context.Context, id int64) (*models.Ruleset, error) {
	return p.catalogRepo.RulesetByID(ctx, id)
}

func (p *Persistence) SaveRuleset(ctx context.Context, ruleset *models.Ruleset) error {
	return p.catalogRepo.SaveRuleset(ctx, ruleset)
}
