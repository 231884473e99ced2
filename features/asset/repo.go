package asset

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	Save(ctx context.Context, v *Version) error
	Readiness(ctx context.Context, id string) (Readiness, error)
	MarkReady(ctx context.Context, id, outputURL string) error
	SoftDelete(ctx context.Context, id string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, v *Version) error {
	query := `INSERT INTO asset_versions (project_id, kind) VALUES ($1, $2) RETURNING id`
	return r.db.QueryRowContext(ctx, query, v.ProjectID, v.Kind).Scan(&v.ID)
}

// Readiness resolves a dependency reference. A missing row and a soft-deleted
// row both report Deleted: an orphaned reference can never become ready.
func (r *PostgresRepo) Readiness(ctx context.Context, id string) (Readiness, error) {
	var outputURL sql.NullString
	var deleted bool
	query := `SELECT output_url, deleted_at IS NOT NULL FROM asset_versions WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&outputURL, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return Deleted, nil
	}
	if err != nil {
		return "", err
	}
	if deleted {
		return Deleted, nil
	}
	if outputURL.Valid && outputURL.String != "" {
		return Ready, nil
	}
	return Pending, nil
}

func (r *PostgresRepo) MarkReady(ctx context.Context, id, outputURL string) error {
	query := `UPDATE asset_versions SET output_url = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, outputURL)
	return err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE asset_versions SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
