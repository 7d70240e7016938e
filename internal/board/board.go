// Package board defines the kanban entities the importer writes and the
// storage errors shared by every backend.
//
// Entities are owned by the board once written. The import engine creates
// them once per run and never updates them afterwards.
package board

import "time"

// PositionGap is the spacing between sibling positions. Items can be moved
// between two neighbours without renumbering the rest of the column.
const PositionGap = 1000

// Column is a board column (a Trello "list").
type Column struct {
	ID           string `json:"id"`
	IdeaID       string `json:"idea_id"`
	Title        string `json:"title"`
	Position     int    `json:"position"`
	IsDoneColumn bool   `json:"is_done_column"`
}

// Label is a colored tag scoped to one board.
type Label struct {
	ID     string `json:"id"`
	IdeaID string `json:"idea_id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// Task is a card on the board. Empty Description, AssigneeID and DueDate
// are stored as NULL.
type Task struct {
	ID          string `json:"id"`
	IdeaID      string `json:"idea_id"`
	ColumnID    string `json:"column_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	Position    int    `json:"position"`
	DueDate     string `json:"due_date,omitempty"` // YYYY-MM-DD
	CreatedBy   string `json:"created_by"`
}

// ChecklistItem is one line of a task checklist.
type ChecklistItem struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// TaskLabel joins a task to a label.
type TaskLabel struct {
	TaskID  string `json:"task_id"`
	LabelID string `json:"label_id"`
}

// Activity is an entry in the board activity feed.
type Activity struct {
	IdeaID    string         `json:"idea_id"`
	TaskID    string         `json:"task_id,omitempty"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionTaskImported is the activity action recorded for imported tasks.
const ActionTaskImported = "task_imported"

// TeamMember is a user that can be assigned tasks on a board.
type TeamMember struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
