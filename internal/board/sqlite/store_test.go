package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db, migrations.SQLite))
	return NewStore(db, nil)
}

func TestStore_InsertAndFindColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cols, err := s.InsertColumns(ctx, []board.Column{
		{IdeaID: "idea-1", Title: "Backlog", Position: 0},
		{IdeaID: "idea-1", Title: "Done", Position: 1000, IsDoneColumn: true},
	})
	require.NoError(t, err)
	require.Len(t, cols, 2)

	found, err := s.FindColumnsByTitle(ctx, "idea-1", []string{" backlog", "nope"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, cols[0].ID, found[0].ID)

	other, err := s.FindColumnsByTitle(ctx, "idea-2", []string{"backlog"})
	require.NoError(t, err)
	assert.Empty(t, other)

	listed, err := s.ListColumns(ctx, "idea-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Backlog", "Done"}, []string{listed[0].Title, listed[1].Title})
	assert.True(t, listed[1].IsDoneColumn)
}

func TestStore_DuplicateColumnRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertColumns(ctx, []board.Column{{IdeaID: "idea-1", Title: "Todo"}})
	require.NoError(t, err)

	_, err = s.InsertColumns(ctx, []board.Column{
		{IdeaID: "idea-1", Title: "Doing", Position: 1000},
		{IdeaID: "idea-1", Title: "TODO ", Position: 2000},
	})
	assert.ErrorIs(t, err, board.ErrDuplicate)

	listed, err := s.ListColumns(ctx, "idea-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestStore_TasksAndRelations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cols, err := s.InsertColumns(ctx, []board.Column{{IdeaID: "idea-1", Title: "Todo"}})
	require.NoError(t, err)
	labels, err := s.InsertLabels(ctx, []board.Label{{IdeaID: "idea-1", Name: "bug", Color: "#ef4444"}})
	require.NoError(t, err)

	tasks, err := s.InsertTasks(ctx, []board.Task{
		{IdeaID: "idea-1", ColumnID: cols[0].ID, Title: "One", Position: 0, CreatedBy: "actor"},
		{IdeaID: "idea-1", ColumnID: cols[0].ID, Title: "Two", Position: 1000, CreatedBy: "actor", DueDate: "2024-01-02"},
	})
	require.NoError(t, err)

	positions, err := s.MaxTaskPositions(ctx, []string{cols[0].ID, "empty-column"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{cols[0].ID: 1000}, positions)

	require.NoError(t, s.InsertTaskLabels(ctx, []board.TaskLabel{{TaskID: tasks[0].ID, LabelID: labels[0].ID}}))
	require.NoError(t, s.InsertChecklistItems(ctx, []board.ChecklistItem{
		{TaskID: tasks[0].ID, Title: "a", Position: 0},
		{TaskID: tasks[0].ID, Title: "b", Position: 1000},
	}))
	require.NoError(t, s.InsertActivity(ctx, []board.Activity{{
		IdeaID: "idea-1", TaskID: tasks[0].ID, ActorID: "actor", Action: board.ActionTaskImported,
	}}))

	err = s.InsertTaskLabels(ctx, []board.TaskLabel{{TaskID: "missing", LabelID: labels[0].ID}})
	assert.ErrorIs(t, err, board.ErrInvalidEntity)

	n, err := s.CountTasks(ctx, "idea-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_TeamMembers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddTeamMember(ctx, "idea-1", board.TeamMember{UserID: "u1", FullName: "Ann", Email: "ann@example.com"}))
	require.NoError(t, s.AddTeamMember(ctx, "idea-1", board.TeamMember{UserID: "u1", FullName: "Ann Lee", Email: "ann@example.com"}))

	members, err := s.ListTeamMembers(ctx, "idea-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Ann Lee", members[0].FullName)
}
