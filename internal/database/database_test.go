package database

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"pagesum/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")

	first, err := New(context.Background(), path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(context.Background(), path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestUserSettingsDefaultAndUpsert(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	us, err := db.GetUserSettingsWithDefault(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, &domain.UserSettings{UserID: 42, Language: "English", DigestHourUTC: 0}, us)

	require.NoError(t, db.UpsertUserSettings(ctx, &domain.UserSettings{UserID: 42, Language: "Hebrew", DigestHourUTC: 7}))
	require.NoError(t, db.UpsertUserSettings(ctx, &domain.UserSettings{UserID: 42, Language: "Arabic", DigestHourUTC: 9}))

	us, err = db.GetUserSettingsWithDefault(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Arabic", us.Language)
	assert.Equal(t, int64(9), us.DigestHourUTC)
}

func TestWatchedPages(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddWatchedPage(ctx, 1, " https://example.com/a ", ""))
	require.NoError(t, db.AddWatchedPage(ctx, 1, "https://example.com/a", "Renamed"))
	require.NoError(t, db.AddWatchedPage(ctx, 1, "https://example.com/b", "B"))
	require.NoError(t, db.AddWatchedPage(ctx, 2, "https://example.com/a", "Other user"))
	require.Error(t, db.AddWatchedPage(ctx, 1, "  ", "empty"))

	pages, err := db.GetUserWatchedPages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://example.com/a", pages[0].URL)
	assert.Equal(t, "Renamed", pages[0].Title)
	assert.Equal(t, int64(1), pages[0].UserID)

	removed, err := db.RemoveWatchedPage(ctx, 2, pages[0].ID)
	require.NoError(t, err)
	assert.False(t, removed, "page of another user must not be removed")

	removed, err = db.RemoveWatchedPage(ctx, 1, pages[0].ID)
	require.NoError(t, err)
	assert.True(t, removed)

	pages, err = db.GetUserWatchedPages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "B", pages[0].Title)
}

func TestGetHourWatchedPages(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddWatchedPage(ctx, 1, "https://example.com/default", ""))
	require.NoError(t, db.AddWatchedPage(ctx, 2, "https://example.com/seven", ""))
	require.NoError(t, db.UpsertUserSettings(ctx, &domain.UserSettings{UserID: 2, Language: "English", DigestHourUTC: 7}))

	midnight, err := db.GetHourWatchedPages(ctx, 0)
	require.NoError(t, err)
	require.Len(t, midnight, 1)
	assert.Equal(t, int64(1), midnight[0].UserID)

	seven, err := db.GetHourWatchedPages(ctx, 7)
	require.NoError(t, err)
	require.Len(t, seven, 1)
	assert.Equal(t, "https://example.com/seven", seven[0].URL)

	none, err := db.GetHourWatchedPages(ctx, 13)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNewClosesDBWhenMigrationFails(t *testing.T) {
	// A directory opens lazily but cannot serve as a database file.
	dir := t.TempDir()

	dbFile, err := sql.Open("sqlite3", dir)
	require.NoError(t, err)

	db, err := newWithDB(context.Background(), dbFile, dir, slog.Default())
	require.Error(t, err)
	assert.Nil(t, db)

	assert.ErrorContains(t, dbFile.Ping(), "database is closed")
}
