package importer

import (
	"context"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// Store is the storage the insertion strategies write through.
//
// Insert methods return the written rows, with ids assigned, in the order
// they were given. Find methods match names case-insensitively after
// trimming and return only rows that exist.
type Store interface {
	InsertColumns(ctx context.Context, cols []board.Column) ([]board.Column, error)
	FindColumnsByTitle(ctx context.Context, ideaID string, titles []string) ([]board.Column, error)

	InsertLabels(ctx context.Context, labels []board.Label) ([]board.Label, error)
	FindLabelsByName(ctx context.Context, ideaID string, names []string) ([]board.Label, error)

	// MaxTaskPositions returns the highest task position per column.
	// Columns without tasks are absent from the result.
	MaxTaskPositions(ctx context.Context, columnIDs []string) (map[string]int, error)
	InsertTasks(ctx context.Context, tasks []board.Task) ([]board.Task, error)

	InsertTaskLabels(ctx context.Context, rows []board.TaskLabel) error
	InsertChecklistItems(ctx context.Context, items []board.ChecklistItem) error
	InsertActivity(ctx context.Context, entries []board.Activity) error
}

// BoardReader loads the current state of a board so a run can be mapped
// against it.
type BoardReader interface {
	ListColumns(ctx context.Context, ideaID string) ([]board.Column, error)
	ListLabels(ctx context.Context, ideaID string) ([]board.Label, error)
	ListTeamMembers(ctx context.Context, ideaID string) ([]board.TeamMember, error)
}

// Backend is a Store that can also read boards.
type Backend interface {
	Store
	BoardReader
}
