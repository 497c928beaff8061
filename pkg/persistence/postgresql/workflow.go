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
)

const workflowColumns = `
			id
		  , title
		  , file
		  , active
		  , created_at
		  , updated_at`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows from the database.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		ORDER BY id
	`

	return r.query(ctx, query)
}

// FindByTitleAndFile returns every workflow with the given title and file.
func (r *WorkflowRepository) FindByTitleAndFile(ctx context.Context, title, file string) ([]*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE title = $1 AND file = $2
		ORDER BY id
	`

	return r.query(ctx, query, title, file)
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, fmt.Errorf("failed to scan workflow: %w", err))
	}

	return workflow, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Save inserts a new workflow or updates an existing one.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	return r.save(ctx, r.db, workflow)
}

func (r *WorkflowRepository) save(ctx context.Context, db execer, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == 0 {
		query := `
			INSERT INTO workflows (title, file, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`

		err := db.QueryRowContext(ctx, query,
			workflow.Title, workflow.File, workflow.Active, workflow.CreatedAt, workflow.UpdatedAt,
		).Scan(&workflow.ID)
		if err != nil {
			return persistence.NewWorkflowError("Save", 0, fmt.Errorf("failed to insert workflow: %w", err))
		}

		return nil
	}

	query := `
		UPDATE workflows
		SET title = $2, file = $3, active = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := db.ExecContext(ctx, query, workflow.ID, workflow.Title, workflow.File, workflow.Active, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to update workflow: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var workflow models.Workflow

	err := row.Scan(
		&workflow.ID,
		&workflow.Title,
		&workflow.File,
		&workflow.Active,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
