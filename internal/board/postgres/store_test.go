package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPool connects to BOARDIMPORT_TEST_DATABASE_URL and applies the
// schema. Tests are skipped when the variable is unset.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("BOARDIMPORT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BOARDIMPORT_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	require.NoError(t, migrations.Up(ctx, db, migrations.Postgres))

	return pool
}

func TestStore_ColumnsAndTasks(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	store := NewStore(pool, nil)
	ideaID := uuid.NewString()
	actor := uuid.NewString()

	cols, err := store.InsertColumns(ctx, []board.Column{
		{IdeaID: ideaID, Title: "To Do", Position: 0},
		{IdeaID: ideaID, Title: "Done", Position: 1000, IsDoneColumn: true},
	})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.NotEmpty(t, cols[0].ID)

	_, err = store.InsertColumns(ctx, []board.Column{{IdeaID: ideaID, Title: " to do ", Position: 2000}})
	assert.ErrorIs(t, err, board.ErrDuplicate)

	found, err := store.FindColumnsByTitle(ctx, ideaID, []string{"TO DO", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, cols[0].ID, found[0].ID)

	tasks, err := store.InsertTasks(ctx, []board.Task{
		{IdeaID: ideaID, ColumnID: cols[0].ID, Title: "A", Position: 0, CreatedBy: actor},
		{IdeaID: ideaID, ColumnID: cols[0].ID, Title: "B", Position: 1000, CreatedBy: actor, DueDate: "2024-03-15"},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	maxPos, err := store.MaxTaskPositions(ctx, []string{cols[0].ID, cols[1].ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{cols[0].ID: 1000}, maxPos)

	labels, err := store.InsertLabels(ctx, []board.Label{{IdeaID: ideaID, Name: "bug", Color: "#ef4444"}})
	require.NoError(t, err)

	require.NoError(t, store.InsertTaskLabels(ctx, []board.TaskLabel{{TaskID: tasks[0].ID, LabelID: labels[0].ID}}))
	require.NoError(t, store.InsertChecklistItems(ctx, []board.ChecklistItem{{TaskID: tasks[0].ID, Title: "step", Position: 0}}))
	require.NoError(t, store.InsertActivity(ctx, []board.Activity{{
		IdeaID:  ideaID,
		TaskID:  tasks[0].ID,
		ActorID: actor,
		Action:  board.ActionTaskImported,
		Details: map[string]any{"title": "A"},
	}}))

	listed, err := store.ListColumns(ctx, ideaID)
	require.NoError(t, err)
	assert.Equal(t, "To Do", listed[0].Title)
	assert.True(t, listed[1].IsDoneColumn)
}

func TestStore_TeamMembers(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	store := NewStore(pool, nil)
	ideaID := uuid.NewString()

	member := board.TeamMember{UserID: uuid.NewString(), FullName: "Ada Lovelace", Email: "ada@example.com"}
	require.NoError(t, store.AddTeamMember(ctx, ideaID, member))
	require.NoError(t, store.AddTeamMember(ctx, ideaID, member))

	members, err := store.ListTeamMembers(ctx, ideaID)
	require.NoError(t, err)
	assert.Equal(t, []board.TeamMember{member}, members)
}
