package asset

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepo(db)
	ctx := context.Background()

	// Output present: ready.
	mock.ExpectQuery(`SELECT output_url, deleted_at IS NOT NULL FROM asset_versions`).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"output_url", "deleted"}).AddRow("https://cdn/x.png", false))
	state, err := repo.Readiness(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, Ready, state)

	// Still generating: pending.
	mock.ExpectQuery(`SELECT output_url, deleted_at IS NOT NULL FROM asset_versions`).
		WithArgs("v2").
		WillReturnRows(sqlmock.NewRows([]string{"output_url", "deleted"}).AddRow(nil, false))
	state, err = repo.Readiness(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, Pending, state)

	// Soft-deleted: permanently failed.
	mock.ExpectQuery(`SELECT output_url, deleted_at IS NOT NULL FROM asset_versions`).
		WithArgs("v3").
		WillReturnRows(sqlmock.NewRows([]string{"output_url", "deleted"}).AddRow("https://cdn/x.png", true))
	state, err = repo.Readiness(ctx, "v3")
	require.NoError(t, err)
	assert.Equal(t, Deleted, state)
}

func TestReadiness_MissingRowIsDeleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepo(db)

	mock.ExpectQuery(`SELECT output_url, deleted_at IS NOT NULL FROM asset_versions`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"output_url", "deleted"}))

	state, err := repo.Readiness(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, Deleted, state, "an orphaned reference can never become ready")
}
