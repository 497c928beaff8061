package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
)

// CatalogRepository handles dockets and rulesets.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) DocketByID(ctx context.Context, id int64) (*models.Docket, error) {
	var docket models.Docket

	err := r.db.QueryRowContext(ctx, `SELECT id, title, file FROM dockets WHERE id = $1`, id).
		Scan(&docket.ID, &docket.Title, &docket.File)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("docket %d: %w", id, persistence.ErrDocketNotFound)
		}

		return nil, fmt.Errorf("failed to fetch docket %d: %w", id, err)
	}

	return &docket, nil
}

func (r *CatalogRepository) SaveDocket(ctx context.Context, docket *models.Docket) error {
	return r.save(ctx, "dockets", &docket.ID, docket.Title, docket.File)
}

func (r *CatalogRepository) RulesetByID(ctx context.Context, id int64) (*models.Ruleset, error) {
	var ruleset models.Ruleset

	err := r.db.QueryRowContext(ctx, `SELECT id, title, file FROM rulesets WHERE id = $1`, id).
		Scan(&ruleset.ID, &ruleset.Title, &ruleset.File)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ruleset %d: %w", id, persistence.ErrRulesetNotFound)
		}

		return nil, fmt.Errorf("failed to fetch ruleset %d: %w", id, err)
	}

	return &ruleset, nil
}

func (r *CatalogRepository) SaveRuleset(ctx context.Context, ruleset *models.Ruleset) error {
	return r.save(ctx, "rulesets", &ruleset.ID, ruleset.Title, ruleset.File)
}

// save upserts a (title, file) catalog row. table is one of the fixed catalog table names.
func (r *CatalogRepository) save(ctx context.Context, table string, id *int64, title, file string) error {
	if *id == 0 {
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO `+table+` (title, file) VALUES ($1, $2) RETURNING id`, title, file,
		).Scan(id)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}

		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, title, file) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, file = EXCLUDED.file`,
		*id, title, file,
	)
	if err != nil {
		return fmt.Errorf("failed to save %s %d: %w", table, *id, err)
	}

	// Rows imported with their own id must not collide with later generated ids.
	_, err = r.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence($1, 'id'), GREATEST((SELECT MAX(id) FROM `+table+`), 1))`, table)
	if err != nil {
		return fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}

	return nil
}
