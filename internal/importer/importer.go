package importer

import (
	"log/slog"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxTasks   = 500
	DefaultBatchSize  = 50
	DefaultRetryDelay = time.Second
)

// Options tunes an Importer. Zero values take the defaults above; a zero
// Throttle means sequential runs do not pause between tasks.
type Options struct {
	MaxTasks    int
	BatchSize   int
	PositionGap int
	RetryDelay  time.Duration
	Throttle    time.Duration
	Logger      *slog.Logger
}

// Importer writes ImportTasks to a board through a Store.
type Importer struct {
	store    Store
	opts     Options
	logger   *slog.Logger
	activity *activityLog
}

// New creates an Importer that writes through store.
func New(store Store, opts Options) *Importer {
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = DefaultMaxTasks
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.PositionGap <= 0 {
		opts.PositionGap = board.PositionGap
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Throttle < 0 {
		opts.Throttle = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "importer"))

	return &Importer{
		store:    store,
		opts:     opts,
		logger:   logger,
		activity: newActivityLog(store, logger),
	}
}

// Wait blocks until every pending activity-log write has finished.
func (im *Importer) Wait() {
	im.activity.wait()
}
