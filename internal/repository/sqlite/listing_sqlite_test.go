package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classificados/internal/config"
	"classificados/internal/database"
	"classificados/internal/model"
	"classificados/internal/repository/repotest"
)

func setupListingSQLite(t *testing.T) (*ListingSQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.db")
	db, err := database.NewSQLite(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repo, err := NewListingSQLite(db)
	require.NoError(t, err)
	return repo, path
}

func TestListingSQLite_LoadEmpty(t *testing.T) {
	repo, _ := setupListingSQLite(t)

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListingSQLite_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, path := setupListingSQLite(t)
	want := repotest.Listings()

	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	repotest.AssertListingsEqual(t, want, got)

	// reopening the file sees the same rows
	db2, err := database.NewSQLite(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	repo2, err := NewListingSQLite(db2)
	require.NoError(t, err)
	got, err = repo2.Load(ctx)
	require.NoError(t, err)
	repotest.AssertListingsEqual(t, want, got)
}

func TestListingSQLite_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupListingSQLite(t)
	all := repotest.Listings()

	require.NoError(t, repo.Save(ctx, all))
	require.NoError(t, repo.Save(ctx, all[1:]))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	repotest.AssertListingsEqual(t, all[1:], got)
}

func TestListingSQLite_FailedSaveKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupListingSQLite(t)
	want := repotest.Listings()
	require.NoError(t, repo.Save(ctx, want))

	dup := append(model.CloneAll(want), want[0])
	assert.Error(t, repo.Save(ctx, dup))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	repotest.AssertListingsEqual(t, want, got)
}

func TestListingSQLite_Ping(t *testing.T) {
	repo, _ := setupListingSQLite(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
