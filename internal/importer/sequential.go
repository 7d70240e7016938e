package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/sethvargo/go-retry"
)

var errNoRowReturned = errors.New("insert returned no row")

// InsertTasksSequentially writes tasks one at a time with live feedback.
//
// Column and label setup is idempotent: a failed write is retried once
// after Options.RetryDelay, reusing rows that already exist by name. If
// columns still cannot be created the run stops with an error; labels that
// cannot be created are left off their tasks.
//
// Each task is inserted with one retry. Failures are reported through
// OnTaskError and collected in Failed without stopping the run. Cancelling
// ctx stops the loop before the next task; tasks already written stay, and
// the partial result is returned with Cancelled set and a nil error.
func (im *Importer) InsertTasksSequentially(ctx context.Context, req ImportRequest, cb SequentialCallbacks) (SequentialInsertResult, error) {
	result := SequentialInsertResult{Failed: []FailedTask{}}
	gap := im.opts.PositionGap
	if req.ColumnMapping == nil {
		req.ColumnMapping = make(ColumnMapping)
	}

	// Writes are never interrupted mid-flight; cancellation is only
	// observed between tasks.
	writeCtx := context.WithoutCancel(ctx)

	logger := im.logger.With("idea_id", req.IdeaID, "strategy", "sequential")
	logger.Info("sequential import started", "tasks", len(req.Tasks))

	columns, err := im.setupColumns(writeCtx, req)
	if err != nil {
		logger.Error("column setup failed", "error", err)
		return result, fmt.Errorf("create columns: %w", err)
	}
	result.ColumnsCreated = columns

	labelRows, labelsCreated, err := im.setupLabels(writeCtx, req)
	if err != nil {
		logger.Warn("label setup failed, continuing without new labels", "error", err)
	}
	result.LabelsCreated = labelsCreated
	labels := labelIndex(req.ExistingLabels, labelRows)

	if cb.OnSetupComplete != nil {
		cb.OnSetupComplete(SetupSummary{Columns: result.ColumnsCreated, Labels: result.LabelsCreated})
	}

	assignees := assigneeIndex(req.TeamMembers)

	pos := newPositions(gap)
	if err := pos.seed(writeCtx, im.store, touchedColumns(req.Tasks, req.ColumnMapping, req.DefaultColumnID)); err != nil {
		logger.Warn("reading task positions failed", "error", err)
	}

	for i, t := range req.Tasks {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		col := targetColumn(t, req.ColumnMapping, req.DefaultColumnID)
		row := taskRow(req, t, col, pos.next(col), assignees)

		created, err := im.insertTask(writeCtx, row)
		if err != nil {
			result.Failed = append(result.Failed, FailedTask{Index: i, Title: t.Title, Error: err.Error()})
			if cb.OnTaskError != nil {
				cb.OnTaskError(i, t.Title, err)
			}
		} else {
			result.Created++
			im.writeTaskRelations(writeCtx, created, t, labels)
			im.activity.record(writeCtx, []board.Activity{importedActivity(req, created, time.Now())})
			if cb.OnTaskCreated != nil {
				cb.OnTaskCreated(i, t.Title)
			}
		}

		if i < len(req.Tasks)-1 {
			im.throttle(ctx)
		}
	}

	logger.Info("sequential import finished",
		"created", result.Created,
		"failed", len(result.Failed),
		"cancelled", result.Cancelled,
	)

	return result, nil
}

// setupColumns creates the columns mapped to NewColumn and updates the
// mapping. It returns how many columns it wrote.
func (im *Importer) setupColumns(ctx context.Context, req ImportRequest) (int, error) {
	names := newColumnNames(req.Tasks, req.ColumnMapping)
	if len(names) == 0 {
		return 0, nil
	}

	planned := make(map[string]board.Column, len(names))
	for _, c := range planColumns(req, names, im.opts.PositionGap) {
		planned[board.NormalizeName(c.Title)] = c
	}

	cols, created, err := upsertByName(ctx, im.opts.RetryDelay, names,
		func(c board.Column) string { return c.Title },
		func(ctx context.Context, pending []string) ([]board.Column, error) {
			rows := make([]board.Column, 0, len(pending))
			for _, n := range pending {
				rows = append(rows, planned[board.NormalizeName(n)])
			}
			return im.store.InsertColumns(ctx, rows)
		},
		func(ctx context.Context, names []string) ([]board.Column, error) {
			return im.store.FindColumnsByTitle(ctx, req.IdeaID, names)
		},
	)
	if err != nil {
		return 0, err
	}

	applyColumns(req.ColumnMapping, cols)
	return created, nil
}

// setupLabels creates labels referenced by tasks that the board lacks. It
// returns the rows now present for those names and how many it wrote.
func (im *Importer) setupLabels(ctx context.Context, req ImportRequest) ([]board.Label, int, error) {
	missing := missingLabels(referencedLabels(req.Tasks), req.ExistingLabels)
	if len(missing) == 0 {
		return nil, 0, nil
	}

	planned := make(map[string]board.Label, len(missing))
	for _, l := range planLabels(req, missing) {
		planned[board.NormalizeName(l.Name)] = l
	}

	return upsertByName(ctx, im.opts.RetryDelay, missing,
		func(l board.Label) string { return l.Name },
		func(ctx context.Context, pending []string) ([]board.Label, error) {
			rows := make([]board.Label, 0, len(pending))
			for _, n := range pending {
				rows = append(rows, planned[board.NormalizeName(n)])
			}
			return im.store.InsertLabels(ctx, rows)
		},
		func(ctx context.Context, names []string) ([]board.Label, error) {
			return im.store.FindLabelsByName(ctx, req.IdeaID, names)
		},
	)
}

// insertTask writes one task, retrying once after RetryDelay.
func (im *Importer) insertTask(ctx context.Context, row board.Task) (board.Task, error) {
	var created board.Task
	err := retry.Do(ctx, retry.WithMaxRetries(1, constantBackoff(im.opts.RetryDelay)), func(ctx context.Context) error {
		rows, err := im.store.InsertTasks(ctx, []board.Task{row})
		if err != nil {
			return retry.RetryableError(err)
		}
		if len(rows) == 0 {
			return retry.RetryableError(errNoRowReturned)
		}
		created = rows[0]
		return nil
	})
	return created, err
}

// writeTaskRelations adds label joins and checklist items for one task.
// Failures are logged and not retried.
func (im *Importer) writeTaskRelations(ctx context.Context, created board.Task, src ImportTask, labels map[string]string) {
	joins, items := relations(created, src, labels, im.opts.PositionGap)

	if len(joins) > 0 {
		if err := im.store.InsertTaskLabels(ctx, joins); err != nil {
			im.logger.Warn("adding task labels failed", "task_id", created.ID, "error", err)
		}
	}
	if len(items) > 0 {
		if err := im.store.InsertChecklistItems(ctx, items); err != nil {
			im.logger.Warn("adding checklist items failed", "task_id", created.ID, "error", err)
		}
	}
}

// throttle pauses between task writes. Cancellation ends the pause early.
func (im *Importer) throttle(ctx context.Context) {
	if im.opts.Throttle <= 0 {
		return
	}
	timer := time.NewTimer(im.opts.Throttle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
