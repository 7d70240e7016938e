// Package postgres implements board storage on PostgreSQL with pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes boards in PostgreSQL.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// NewStore creates a Store. Pass a *pgxpool.Pool in production or a pgx.Tx
// to run every call inside one transaction.
func NewStore(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "postgres_board_store")),
	}
}

// InsertColumns writes all columns in one transaction. A duplicate title on
// the board fails the whole call with board.ErrDuplicate.
func (s *Store) InsertColumns(ctx context.Context, cols []board.Column) ([]board.Column, error) {
	if len(cols) == 0 {
		return nil, nil
	}

	out := make([]board.Column, len(cols))
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for i, c := range cols {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO board_columns (id, idea_id, title, position, is_done_column)
				VALUES ($1, $2, $3, $4, $5)`,
				pgtype.UUID{Bytes: id, Valid: true}, toPgUUID(c.IdeaID), c.Title, c.Position, c.IsDoneColumn,
			)
			if err != nil {
				return fmt.Errorf("insert column %q: %w", c.Title, err)
			}
			c.ID = id.String()
			out[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, MapError(err)
	}

	s.logger.Debug("columns inserted", "count", len(out))
	return out, nil
}

// FindColumnsByTitle returns columns whose trimmed, lower-cased title is in
// titles.
func (s *Store) FindColumnsByTitle(ctx context.Context, ideaID string, titles []string) ([]board.Column, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, idea_id, title, position, is_done_column
		FROM board_columns
		WHERE idea_id = $1 AND lower(btrim(title)) = ANY($2)
		ORDER BY position`,
		toPgUUID(ideaID), normalizedNames(titles),
	)
	if err != nil {
		return nil, MapError(err)
	}
	return collectColumns(rows)
}

// ListColumns returns a board's columns ordered by position.
func (s *Store) ListColumns(ctx context.Context, ideaID string) ([]board.Column, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, idea_id, title, position, is_done_column
		FROM board_columns
		WHERE idea_id = $1
		ORDER BY position`,
		toPgUUID(ideaID),
	)
	if err != nil {
		return nil, MapError(err)
	}
	return collectColumns(rows)
}

func collectColumns(rows pgx.Rows) ([]board.Column, error) {
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (board.Column, error) {
		var (
			c          board.Column
			id, ideaID pgtype.UUID
		)
		if err := row.Scan(&id, &ideaID, &c.Title, &c.Position, &c.IsDoneColumn); err != nil {
			return c, err
		}
		c.ID = fromPgUUID(id)
		c.IdeaID = fromPgUUID(ideaID)
		return c, nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	return cols, nil
}

// InsertLabels writes all labels in one transaction.
func (s *Store) InsertLabels(ctx context.Context, labels []board.Label) ([]board.Label, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	out := make([]board.Label, len(labels))
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for i, l := range labels {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO board_labels (id, idea_id, name, color)
				VALUES ($1, $2, $3, $4)`,
				pgtype.UUID{Bytes: id, Valid: true}, toPgUUID(l.IdeaID), l.Name, l.Color,
			)
			if err != nil {
				return fmt.Errorf("insert label %q: %w", l.Name, err)
			}
			l.ID = id.String()
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
	rows, err := s.db.Query(ctx, `
		SELECT id, idea_id, name, color
		FROM board_labels
		WHERE idea_id = $1 AND lower(btrim(name)) = ANY($2)`,
		toPgUUID(ideaID), normalizedNames(names),
	)
	if err != nil {
		return nil, MapError(err)
	}
	return collectLabels(rows)
}

// ListLabels returns a board's labels.
func (s *Store) ListLabels(ctx context.Context, ideaID string) ([]board.Label, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, idea_id, name, color
		FROM board_labels
		WHERE idea_id = $1
		ORDER BY created_at, name`,
		toPgUUID(ideaID),
	)
	if err != nil {
		return nil, MapError(err)
	}
	return collectLabels(rows)
}

func collectLabels(rows pgx.Rows) ([]board.Label, error) {
	labels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (board.Label, error) {
		var (
			l          board.Label
			id, ideaID pgtype.UUID
		)
		if err := row.Scan(&id, &ideaID, &l.Name, &l.Color); err != nil {
			return l, err
		}
		l.ID = fromPgUUID(id)
		l.IdeaID = fromPgUUID(ideaID)
		return l, nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	return labels, nil
}

// ListTeamMembers returns the users that can be assigned on a board.
func (s *Store) ListTeamMembers(ctx context.Context, ideaID string) ([]board.TeamMember, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, full_name, email
		FROM idea_members
		WHERE idea_id = $1`,
		toPgUUID(ideaID),
	)
	if err != nil {
		return nil, MapError(err)
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (board.TeamMember, error) {
		var (
			m  board.TeamMember
			id pgtype.UUID
		)
		if err := row.Scan(&id, &m.FullName, &m.Email); err != nil {
			return m, err
		}
		m.UserID = fromPgUUID(id)
		return m, nil
	})
	if err != nil {
		return nil, MapError(err)
	}
	return members, nil
}

// MaxTaskPositions returns the highest task position of each column that
// has tasks.
func (s *Store) MaxTaskPositions(ctx context.Context, columnIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	if len(columnIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT column_id, max(position)
		FROM board_tasks
		WHERE column_id = ANY($1)
		GROUP BY column_id`,
		uuidArray(columnIDs),
	)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  pgtype.UUID
			pos int32
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, MapError(err)
		}
		out[fromPgUUID(id)] = int(pos)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// InsertTasks writes tasks with the COPY protocol. The batch is atomic:
// either every row is written or none is.
func (s *Store) InsertTasks(ctx context.Context, tasks []board.Task) ([]board.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	out := make([]board.Task, len(tasks))
	rows := make([][]any, len(tasks))
	for i, t := range tasks {
		id := uuid.New()
		t.ID = id.String()
		out[i] = t
		rows[i] = []any{
			pgtype.UUID{Bytes: id, Valid: true},
			toPgUUID(t.IdeaID),
			toPgUUID(t.ColumnID),
			t.Title,
			toPgText(t.Description),
			toPgUUID(t.AssigneeID),
			int32(t.Position),
			toPgDate(t.DueDate),
			toPgUUID(t.CreatedBy),
		}
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"board_tasks"},
		[]string{"id", "idea_id", "column_id", "title", "description", "assignee_id", "position", "due_date", "created_by"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, MapError(fmt.Errorf("copy tasks: %w", err))
	}

	s.logger.Debug("tasks inserted", "count", len(out))
	return out, nil
}

// InsertTaskLabels writes task-label joins with COPY.
func (s *Store) InsertTaskLabels(ctx context.Context, joins []board.TaskLabel) error {
	if len(joins) == 0 {
		return nil
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"board_task_labels"},
		[]string{"task_id", "label_id"},
		pgx.CopyFromSlice(len(joins), func(i int) ([]any, error) {
			return []any{toPgUUID(joins[i].TaskID), toPgUUID(joins[i].LabelID)}, nil
		}),
	)
	if err != nil {
		return MapError(fmt.Errorf("copy task labels: %w", err))
	}
	return nil
}

// InsertChecklistItems writes checklist items with COPY.
func (s *Store) InsertChecklistItems(ctx context.Context, items []board.ChecklistItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"board_checklist_items"},
		[]string{"id", "task_id", "title", "position"},
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{
				pgtype.UUID{Bytes: uuid.New(), Valid: true},
				toPgUUID(it.TaskID),
				it.Title,
				int32(it.Position),
			}, nil
		}),
	)
	if err != nil {
		return MapError(fmt.Errorf("copy checklist items: %w", err))
	}
	return nil
}

// InsertActivity writes activity feed entries with COPY.
func (s *Store) InsertActivity(ctx context.Context, entries []board.Activity) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"board_activity"},
		[]string{"id", "idea_id", "task_id", "actor_id", "action", "details", "created_at"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			details := e.Details
			if details == nil {
				details = map[string]any{}
			}
			created := e.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			return []any{
				pgtype.UUID{Bytes: uuid.New(), Valid: true},
				toPgUUID(e.IdeaID),
				toPgUUID(e.TaskID),
				toPgUUID(e.ActorID),
				e.Action,
				details,
				pgtype.Timestamptz{Time: created, Valid: true},
			}, nil
		}),
	)
	if err != nil {
		return MapError(fmt.Errorf("copy activity: %w", err))
	}
	return nil
}

// AddTeamMember registers a user on a board.
func (s *Store) AddTeamMember(ctx context.Context, ideaID string, m board.TeamMember) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO idea_members (idea_id, user_id, full_name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idea_id, user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name, email = EXCLUDED.email`,
		toPgUUID(ideaID), toPgUUID(m.UserID), m.FullName, m.Email,
	)
	return MapError(err)
}
