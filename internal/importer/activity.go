package importer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// activityLog writes activity entries in the background. A failed write is
// logged and otherwise ignored.
type activityLog struct {
	store  Store
	logger *slog.Logger
	wg     sync.WaitGroup
}

func newActivityLog(store Store, logger *slog.Logger) *activityLog {
	return &activityLog{store: store, logger: logger}
}

// record starts the write and returns immediately.
func (a *activityLog) record(ctx context.Context, entries []board.Activity) {
	if len(entries) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("panic in activity log write", "panic", r)
			}
		}()

		if err := a.store.InsertActivity(ctx, entries); err != nil {
			a.logger.Warn("activity log write failed",
				"entries", len(entries),
				"error", err,
			)
		}
	}()
}

func (a *activityLog) wait() {
	a.wg.Wait()
}

// importedActivity builds the feed entry for one imported task.
func importedActivity(req ImportRequest, task board.Task, now time.Time) board.Activity {
	return board.Activity{
		IdeaID:  req.IdeaID,
		TaskID:  task.ID,
		ActorID: req.ActorID,
		Action:  board.ActionTaskImported,
		Details: map[string]any{
			"title":     task.Title,
			"column_id": task.ColumnID,
			"source":    "import",
		},
		CreatedAt: now,
	}
}
