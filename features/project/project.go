// Package project exposes the ownership lookup backing the default
// processor authorization check.
package project

import (
	"context"
	"database/sql"
)

type Repository interface {
	OwnerID(ctx context.Context, projectID string) (string, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) OwnerID(ctx context.Context, projectID string) (string, error) {
	var ownerID string
	query := `SELECT user_id FROM projects WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(&ownerID)
	if err != nil {
		return "", err
	}
	return ownerID, nil
}
