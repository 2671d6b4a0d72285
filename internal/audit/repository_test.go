package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/workbench-core/internal/infrastructure/database"
	_ "github.com/nerrad567/workbench-core/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionCreated, PrinterID: "p-1", PrinterName: "Receipt", Actor: "admin", CreatedAt: base},
		{Action: ActionConnected, PrinterID: "p-1", PrinterName: "Receipt", Actor: "admin",
			Details: map[string]any{"elapsed_ms": 12}, CreatedAt: base.Add(time.Second)},
		{Action: ActionCreated, PrinterID: "p-2", PrinterName: "Label", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, defaultLimit, all.Limit)
	require.Len(t, all.Entries, 3)
	assert.Equal(t, "p-2", all.Entries[0].PrinterID, "newest first")
	assert.True(t, all.Entries[2].CreatedAt.Equal(base))

	connected := all.Entries[1]
	assert.Equal(t, ActionConnected, connected.Action)
	assert.Equal(t, "admin", connected.Actor)
	assert.EqualValues(t, 12, connected.Details["elapsed_ms"])

	byPrinter, err := repo.List(ctx, Filter{PrinterID: "p-1", Action: ActionCreated})
	require.NoError(t, err)
	assert.Equal(t, 1, byPrinter.Total)
	assert.Equal(t, "Receipt", byPrinter.Entries[0].PrinterName)

	anonymous := all.Entries[0]
	assert.Empty(t, anonymous.Actor)
	assert.Nil(t, anonymous.Details)
}

func TestSQLiteRepository_ListPaging(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &Entry{Action: ActionUpdated, PrinterID: "p-1"}))
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Entries, 1)

	clamped, err := repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, clamped.Limit)
	assert.Equal(t, 0, clamped.Offset)

	empty, err := repo.List(ctx, Filter{PrinterID: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Entries)
	assert.Empty(t, empty.Entries)
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ActorFromContext(ctx))
	assert.Equal(t, "admin", ActorFromContext(WithActor(ctx, "admin")))
}
