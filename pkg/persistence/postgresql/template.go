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

const taskColumns = `
			id
		  , template_id
		  , title
		  , ordering
		  , priority
		  , edit_type
		  , batch_step
		  , type_automatic
		  , type_export_dms
		  , type_export_russian
		  , type_metadata
		  , type_import_file_upload
		  , type_images_read
		  , type_images_write
		  , type_accept_close
		  , type_close_verify
		  , script_name
		  , script_path
		  , workflow_condition`

// TemplateRepository handles templates and their tasks.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// GetByID returns a template with its tasks ordered by ordering.
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	query := `
		SELECT id, title, output_name, workflow_id, docket_id, ruleset_id, created_at, updated_at
		FROM templates
		WHERE id = $1
	`

	template, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTemplateError("GetByID", id, persistence.ErrTemplateNotFound)
		}

		return nil, persistence.NewTemplateError("GetByID", id, fmt.Errorf("failed to scan template: %w", err))
	}

	template.Tasks, err = r.tasks(ctx, template.ID)
	if err != nil {
		return nil, persistence.NewTemplateError("GetByID", id, err)
	}

	return template, nil
}

// ListByWorkflow returns the templates of a workflow ordered by id, tasks included.
func (r *TemplateRepository) ListByWorkflow(ctx context.Context, workflowID int64) ([]*models.Template, error) {
	query := `
		SELECT id, title, output_name, workflow_id, docket_id, ruleset_id, created_at, updated_at
		FROM templates
		WHERE workflow_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}

	templates := make([]*models.Template, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			_ = rows.Close()

			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	err = rows.Err()

	if closeErr := rows.Close(); closeErr != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
	}

	if err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	for _, template := range templates {
		template.Tasks, err = r.tasks(ctx, template.ID)
		if err != nil {
			return nil, err
		}
	}

	return templates, nil
}

// SaveAll stores the templates and replaces their tasks in one transaction.
func (r *TemplateRepository) SaveAll(ctx context.Context, templates []*models.Template) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
		}
	}()

	now := time.Now().UTC()

	for _, template := range templates {
		if err := r.save(ctx, tx, template, now); err != nil {
			return persistence.NewTemplateError("Save", template.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *TemplateRepository) save(ctx context.Context, tx *sql.Tx, template *models.Template, now time.Time) error {
	createdAt := template.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	if template.ID == 0 {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO templates (title, output_name, workflow_id, docket_id, ruleset_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, template.Title, template.OutputName, template.WorkflowID,
			nullable(template.DocketID), nullable(template.RulesetID), createdAt, now,
		).Scan(&template.ID)
		if err != nil {
			return fmt.Errorf("failed to insert template: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx, `
			UPDATE templates
			SET title = $2, output_name = $3, workflow_id = $4, docket_id = $5, ruleset_id = $6, updated_at = $7
			WHERE id = $1
		`, template.ID, template.Title, template.OutputName, template.WorkflowID,
			nullable(template.DocketID), nullable(template.RulesetID), now,
		)
		if err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 0 {
			return persistence.ErrTemplateNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE template_id = $1`, template.ID); err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
	}

	template.CreatedAt = createdAt
	template.UpdatedAt = now

	for _, task := range template.Tasks {
		task.TemplateID = template.ID

		err := tx.QueryRowContext(ctx, `
			INSERT INTO tasks (
				template_id, title, ordering, priority, edit_type, batch_step,
				type_automatic, type_export_dms, type_export_russian, type_metadata,
				type_import_file_upload, type_images_read, type_images_write,
				type_accept_close, type_close_verify, script_name, script_path, workflow_condition
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id
		`,
			task.TemplateID, task.Title, task.Ordering, task.Priority, task.EditType, task.BatchStep,
			task.TypeAutomatic, task.TypeExportDMS, task.TypeExportRussian, task.TypeMetadata,
			task.TypeImportFileUpload, task.TypeImagesRead, task.TypeImagesWrite,
			task.TypeAcceptClose, task.TypeCloseVerify, task.ScriptName, task.ScriptPath, task.WorkflowCondition,
		).Scan(&task.ID)
		if err != nil {
			return fmt.Errorf("failed to insert task %q: %w", task.Title, err)
		}
	}

	return nil
}

func (r *TemplateRepository) tasks(ctx context.Context, templateID int64) ([]*models.Task, error) {
	query := `SELECT` + taskColumns + `
		FROM tasks
		WHERE template_id = $1
		ORDER BY ordering, id
	`

	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		var task models.Task

		err := rows.Scan(
			&task.ID, &task.TemplateID, &task.Title, &task.Ordering, &task.Priority, &task.EditType, &task.BatchStep,
			&task.TypeAutomatic, &task.TypeExportDMS, &task.TypeExportRussian, &task.TypeMetadata,
			&task.TypeImportFileUpload, &task.TypeImagesRead, &task.TypeImagesWrite,
			&task.TypeAcceptClose, &task.TypeCloseVerify, &task.ScriptName, &task.ScriptPath, &task.WorkflowCondition,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func scanTemplate(row scanner) (*models.Template, error) {
	var (
		template  models.Template
		docketID  sql.NullInt64
		rulesetID sql.NullInt64
	)

	err := row.Scan(
		&template.ID,
		&template.Title,
		&template.OutputName,
		&template.WorkflowID,
		&docketID,
		&rulesetID,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if docketID.Valid {
		template.DocketID = &docketID.Int64
	}

	if rulesetID.Valid {
		template.RulesetID = &rulesetID.Int64
	}

	return &template, nil
}

func nullable(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *id, Valid: true}
}
