// Package sqlite implements board storage on an embedded SQLite file, for
// the command line importer and local development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the database at path with foreign keys on.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Store reads and writes boards in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps an open database. The schema must already be applied.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "sqlite_board_store"))}
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InsertColumns writes all columns in one transaction.
func (s *Store) InsertColumns(ctx context.Context, cols []board.Column) ([]board.Column, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	out := make([]board.Column, len(cols))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, c := range cols {
			c.ID = uuid.NewString()
			_, err := tx.ExecContext(ctx,
				`INSERT INTO board_columns (id, idea_id, title, position, is_done_column) VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.IdeaID, c.Title, c.Position, c.IsDoneColumn,
			)
			if err != nil {
				return fmt.Errorf("insert column %q: %w", c.Title, err)
			}
			out[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// FindColumnsByTitle returns columns whose normalized title is in titles.
func (s *Store) FindColumnsByTitle(ctx context.Context, ideaID string, titles []string) ([]board.Column, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	where, args := inClause("lower(trim(title))", normalized(titles))
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idea_id, title, position, is_done_column FROM board_columns
		 WHERE idea_id = ? AND `+where+` ORDER BY position`,
		append([]any{ideaID}, args...)...,
	)
	if err != nil {
		return nil, MapError(err)
	}
	return scanColumns(rows)
}

// ListColumns returns a board's columns ordered by position.
func (s *Store) ListColumns(ctx context.Context, ideaID string) ([]board.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idea_id, title, position, is_done_column FROM board_columns
		 WHERE idea_id = ? ORDER BY position`,
		ideaID,
	)
	if err != nil {
		return nil, MapError(err)
	}
	return scanColumns(rows)
}

func scanColumns(rows *sql.Rows) ([]board.Column, error) {
	defer rows.Close()
	var out []board.Column
	for rows.Next() {
		var c board.Column
		if err := rows.Scan(&c.ID, &c.IdeaID, &c.Title, &c.Position, &c.IsDoneColumn); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertLabels writes all labels in one transaction.
func (s *Store) InsertLabels(ctx context.Context, labels []board.Label) ([]board.Label, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	out := make([]board.Label, len(labels))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, l := range labels {
			l.ID = uuid.NewString()
			_, err := tx.ExecContext(ctx,
				`INSERT INTO board_labels (id, idea_id, name, color) VALUES (?, ?, ?, ?)`,
				l.ID, l.IdeaID, l.Name, l.Color,
			)
			if err != nil {
				return fmt.Errorf("insert label %q: %w", l.Name, err)
			}
			out[i] = l
		}
		return nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// FindLabelsByName returns labels whose normalized name is in names.
func (s *Store) FindLabelsByName(ctx context.Context, ideaID string, names []string) ([]board.Label, error) {
	if len(names) == 0 {
		return nil, nil
	}
	where, args := inClause("lower(trim(name))", normalized(names))
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idea_id, name, color FROM board_labels WHERE idea_id = ? AND `+where,
		append([]any{ideaID}, args...)...,
	)
	if err != nil {
		return nil, MapError(err)
	}
	return scanLabels(rows)
}

// ListLabels returns a board's labels.
func (s *Store) ListLabels(ctx context.Context, ideaID string) ([]board.Label, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idea_id, name, color FROM board_labels WHERE idea_id = ? ORDER BY created_at, name`,
		ideaID,
	)
	if err != nil {
		return nil, MapError(err)
	}
	return scanLabels(rows)
}

func scanLabels(rows *sql.Rows) ([]board.Label, error) {
	defer rows.Close()
	var out []board.Label
	for rows.Next() {
		var l board.Label
		if err := rows.Scan(&l.ID, &l.IdeaID, &l.Name, &l.Color); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListTeamMembers returns a board's members.
func (s *Store) ListTeamMembers(ctx context.Context, ideaID string) ([]board.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, full_name, email FROM idea_members WHERE idea_id = ?`, ideaID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var out []board.TeamMember
	for rows.Next() {
		var m board.TeamMember
		if err := rows.Scan(&m.UserID, &m.FullName, &m.Email); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddTeamMember registers or updates a board member.
func (s *Store) AddTeamMember(ctx context.Context, ideaID string, m board.TeamMember) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idea_members (idea_id, user_id, full_name, email) VALUES (?, ?, ?, ?)
		 ON CONFLICT (idea_id, user_id) DO UPDATE SET full_name = excluded.full_name, email = excluded.email`,
		ideaID, m.UserID, m.FullName, m.Email,
	)
	return MapError(err)
}

// MaxTaskPositions returns the highest task position per column.
func (s *Store) MaxTaskPositions(ctx context.Context, columnIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	if len(columnIDs) == 0 {
		return out, nil
	}
	where, args := inClause("column_id", columnIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_id, max(position) FROM board_tasks WHERE `+where+` GROUP BY column_id`,
		args...,
	)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			pos int
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, err
		}
		out[id] = pos
	}
	return out, rows.Err()
}

// InsertTasks writes tasks in one transaction.
func (s *Store) InsertTasks(ctx context.Context, tasks []board.Task) ([]board.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	out := make([]board.Task, len(tasks))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO board_tasks (id, idea_id, column_id, title, description, assignee_id, position, due_date, created_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range tasks {
			t.ID = uuid.NewString()
			_, err := stmt.ExecContext(ctx,
				t.ID, t.IdeaID, t.ColumnID, t.Title,
				nullString(t.Description), nullString(t.AssigneeID),
				t.Position, nullString(t.DueDate), t.CreatedBy,
			)
			if err != nil {
				return fmt.Errorf("insert task %q: %w", t.Title, err)
			}
			out[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	s.logger.Debug("tasks inserted", "count", len(out))
	return out, nil
}

// InsertTaskLabels writes task-label joins.
func (s *Store) InsertTaskLabels(ctx context.Context, joins []board.TaskLabel) error {
	if len(joins) == 0 {
		return nil
	}
	return MapError(s.inTx(ctx, func(tx *sql.Tx) error {
		for _, j := range joins {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO board_task_labels (task_id, label_id) VALUES (?, ?)`,
				j.TaskID, j.LabelID,
			); err != nil {
				return err
			}
		}
		return nil
	}))
}

// InsertChecklistItems writes checklist items.
func (s *Store) InsertChecklistItems(ctx context.Context, items []board.ChecklistItem) error {
	if len(items) == 0 {
		return nil
	}
	return MapError(s.inTx(ctx, func(tx *sql.Tx) error {
		for _, it := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO board_checklist_items (id, task_id, title, position) VALUES (?, ?, ?, ?)`,
				uuid.NewString(), it.TaskID, it.Title, it.Position,
			); err != nil {
				return err
			}
		}
		return nil
	}))
}

// InsertActivity writes activity entries. Details are stored as JSON text.
func (s *Store) InsertActivity(ctx context.Context, entries []board.Activity) error {
	if len(entries) == 0 {
		return nil
	}
	return MapError(s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			details := e.Details
			if details == nil {
				details = map[string]any{}
			}
			raw, err := json.Marshal(details)
			if err != nil {
				return fmt.Errorf("encode activity details: %w", err)
			}
			created := e.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO board_activity (id, idea_id, task_id, actor_id, action, details, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), e.IdeaID, nullString(e.TaskID), e.ActorID, e.Action,
				string(raw), created.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return err
			}
		}
		return nil
	}))
}

// CountTasks returns the number of tasks on a board.
func (s *Store) CountTasks(ctx context.Context, ideaID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM board_tasks WHERE idea_id = ?`, ideaID).Scan(&n)
	return n, MapError(err)
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func normalized(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = board.NormalizeName(n)
	}
	return out
}

// inClause builds "expr IN (?, ?, ...)" for values.
func inClause(expr string, values []string) (string, []any) {
	marks := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		marks[i] = "?"
		args[i] = v
	}
	return expr + " IN (" + strings.Join(marks, ", ") + ")", args
}
