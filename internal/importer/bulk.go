package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// ExecuteBulkImport writes tasks in batches for throughput.
//
// At most Options.MaxTasks tasks are considered; the rest are dropped
// silently. Each phase reports progress before it starts. Failures after
// the columns phase are collected in the result's Errors and never stop
// later batches. Only a failure to create needed columns returns an error,
// since no task can be placed without its column.
//
// New columns are written back into req.ColumnMapping.
func (im *Importer) ExecuteBulkImport(ctx context.Context, req ImportRequest, onProgress ProgressFunc) (BulkImportResult, error) {
	result := BulkImportResult{Errors: []string{}}
	gap := im.opts.PositionGap

	tasks := req.Tasks
	if len(tasks) > im.opts.MaxTasks {
		tasks = tasks[:im.opts.MaxTasks]
	}
	total := len(tasks)
	if req.ColumnMapping == nil {
		req.ColumnMapping = make(ColumnMapping)
	}

	report := func(phase ImportPhase, current int) {
		if onProgress != nil {
			onProgress(ImportProgress{Phase: phase, Current: current, Total: total})
		}
	}

	logger := im.logger.With("idea_id", req.IdeaID, "strategy", "bulk")
	logger.Info("bulk import started", "tasks", total, "dropped", len(req.Tasks)-total)

	// Columns
	report(PhaseColumns, 0)
	if names := newColumnNames(tasks, req.ColumnMapping); len(names) > 0 {
		created, err := im.store.InsertColumns(ctx, planColumns(req, names, gap))
		if err != nil {
			logger.Error("column creation failed", "columns", len(names), "error", err)
			return result, fmt.Errorf("create columns: %w", err)
		}
		applyColumns(req.ColumnMapping, created)
	}

	// Labels
	report(PhaseLabels, 0)
	var createdLabels []board.Label
	if missing := missingLabels(referencedLabels(tasks), req.ExistingLabels); len(missing) > 0 {
		created, err := im.store.InsertLabels(ctx, planLabels(req, missing))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to create labels: %v", err))
		} else {
			createdLabels = created
		}
	}
	labels := labelIndex(req.ExistingLabels, createdLabels)

	// Assignees
	report(PhaseAssignees, 0)
	assignees := assigneeIndex(req.TeamMembers)

	// Positions
	report(PhasePositions, 0)
	pos := newPositions(gap)
	if err := pos.seed(ctx, im.store, touchedColumns(tasks, req.ColumnMapping, req.DefaultColumnID)); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read task positions: %v", err))
	}

	// Tasks, then their labels and checklists, one batch at a time
	for _, b := range chunk(total, im.opts.BatchSize) {
		report(PhaseTasks, b[0])

		batch := tasks[b[0]:b[1]]
		rows := make([]board.Task, 0, len(batch))
		for _, t := range batch {
			col := targetColumn(t, req.ColumnMapping, req.DefaultColumnID)
			rows = append(rows, taskRow(req, t, col, pos.next(col), assignees))
		}

		created, err := im.store.InsertTasks(ctx, rows)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Failed to insert tasks %d-%d: %v", b[0]+1, b[1], err))
			continue
		}
		result.Created += len(created)

		report(PhaseRelations, b[0])
		im.writeRelations(ctx, created, batch, labels, &result)

		now := time.Now()
		entries := make([]board.Activity, 0, len(created))
		for _, task := range created {
			entries = append(entries, importedActivity(req, task, now))
		}
		im.activity.record(ctx, entries)
	}

	report(PhaseComplete, total)
	logger.Info("bulk import finished", "created", result.Created, "errors", len(result.Errors))

	return result, nil
}

// writeRelations inserts label joins and checklist items for a written
// batch. created[i] is the row written for batch[i].
func (im *Importer) writeRelations(ctx context.Context, created []board.Task, batch []ImportTask, labels map[string]string, result *BulkImportResult) {
	var (
		joins []board.TaskLabel
		items []board.ChecklistItem
	)
	for i, task := range created {
		if i >= len(batch) {
			break
		}
		j, c := relations(task, batch[i], labels, im.opts.PositionGap)
		joins = append(joins, j...)
		items = append(items, c...)
	}

	for _, r := range chunk(len(joins), im.opts.BatchSize) {
		if err := im.store.InsertTaskLabels(ctx, joins[r[0]:r[1]]); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to add task labels: %v", err))
		}
	}
	for _, r := range chunk(len(items), im.opts.BatchSize) {
		if err := im.store.InsertChecklistItems(ctx, items[r[0]:r[1]]); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to add checklist items: %v", err))
		}
	}
}
