package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/google/uuid"
)

// Mode selects the insertion strategy of a run.
type Mode string

const (
	ModeBulk       Mode = "bulk"
	ModeSequential Mode = "sequential"
)

var (
	// ErrRunNotFound is returned for an unknown or expired run id.
	ErrRunNotFound = errors.New("import run not found")

	// ErrNoDefaultColumn is returned when tasks need a default column and
	// the board has none.
	ErrNoDefaultColumn = errors.New("board has no column to import into")

	// ErrNotCancellable is returned when cancelling a bulk run.
	ErrNotCancellable = errors.New("bulk imports cannot be cancelled")
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Importer        Options
	MaxConcurrent   int
	MaxWait         time.Duration
	Timeout         time.Duration // per run
	ResultRetention time.Duration // how long finished runs stay queryable
}

// Service runs imports in the background and tracks their progress.
type Service struct {
	backend  Backend
	importer *Importer
	limiter  *ImportLimiter
	cfg      ServiceConfig
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID     string
	IdeaID string
	Mode   Mode
	Cancel context.CancelFunc

	mu       sync.Mutex
	progress RunProgress
	result   *RunResult

	Done       chan struct{}
	listeners  []chan RunProgress
	listenerMu sync.Mutex
}

// RunProgress is broadcast to subscribers while a run executes.
type RunProgress struct {
	RunID  string `json:"run_id"`
	IdeaID string `json:"idea_id"`
	Mode   Mode   `json:"mode"`
	ImportProgress
	Created int    `json:"created"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// RunResult is the final outcome of a run.
type RunResult struct {
	RunID          string        `json:"run_id"`
	IdeaID         string        `json:"idea_id"`
	Mode           Mode          `json:"mode"`
	Total          int           `json:"total"`
	Created        int           `json:"created"`
	Errors         []string      `json:"errors"`
	Failed         []FailedTask  `json:"failed"`
	ColumnsCreated int           `json:"columns_created"`
	LabelsCreated  int           `json:"labels_created"`
	Cancelled      bool          `json:"cancelled"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// NewService creates a Service backed by backend.
func NewService(backend Backend, cfg ServiceConfig) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = 5 * time.Minute
	}
	logger := cfg.Importer.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		backend:  backend,
		importer: New(backend, cfg.Importer),
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "import_service")),
		runs:     make(map[string]*activeRun),
	}
}

// Preview is what an import would do, computed without writing anything.
type Preview struct {
	Format        Format          `json:"format"`
	Headers       []string        `json:"headers,omitempty"`
	CSVMapping    CSVFieldMapping `json:"csv_mapping,omitempty"`
	Tasks         []ImportTask    `json:"tasks"`
	TotalTasks    int             `json:"total_tasks"`
	Truncated     bool            `json:"truncated"`
	ColumnMapping ColumnMapping   `json:"column_mapping"`
	NewColumns    []string        `json:"new_columns"`
	NewLabels     []string        `json:"new_labels"`
	Columns       []board.Column  `json:"columns"`
}

// Preview parses data and maps it against the board.
func (s *Service) Preview(ctx context.Context, ideaID string, format Format, data []byte, csvMapping CSVFieldMapping) (*Preview, error) {
	parsed, err := ParseInput(format, data, csvMapping)
	if err != nil {
		return nil, err
	}

	columns, err := s.backend.ListColumns(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	labels, err := s.backend.ListLabels(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	mapping := AutoMapColumns(SourceColumnNames(parsed.Tasks), columns)

	return &Preview{
		Format:        parsed.Format,
		Headers:       parsed.Headers,
		CSVMapping:    parsed.CSVMapping,
		Tasks:         parsed.Tasks,
		TotalTasks:    len(parsed.Tasks),
		Truncated:     len(parsed.Tasks) > s.importer.opts.MaxTasks,
		ColumnMapping: mapping,
		NewColumns:    newColumnNames(parsed.Tasks, mapping),
		NewLabels:     missingLabels(referencedLabels(parsed.Tasks), labels),
		Columns:       columns,
	}, nil
}

// StartRequest describes an import run.
type StartRequest struct {
	IdeaID          string
	ActorID         string
	Mode            Mode
	Format          Format
	Data            []byte
	CSVMapping      CSVFieldMapping // optional, auto-detected when empty
	ColumnMapping   ColumnMapping   // optional, overrides auto-mapping per name
	DefaultColumnID string          // optional, first column when empty
}

// Prepare parses the input and loads the board into an ImportRequest.
func (s *Service) Prepare(ctx context.Context, req StartRequest) (ImportRequest, error) {
	parsed, err := ParseInput(req.Format, req.Data, req.CSVMapping)
	if err != nil {
		return ImportRequest{}, err
	}

	columns, err := s.backend.ListColumns(ctx, req.IdeaID)
	if err != nil {
		return ImportRequest{}, fmt.Errorf("list columns: %w", err)
	}
	labels, err := s.backend.ListLabels(ctx, req.IdeaID)
	if err != nil {
		return ImportRequest{}, fmt.Errorf("list labels: %w", err)
	}
	members, err := s.backend.ListTeamMembers(ctx, req.IdeaID)
	if err != nil {
		return ImportRequest{}, fmt.Errorf("list team members: %w", err)
	}

	mapping := AutoMapColumns(SourceColumnNames(parsed.Tasks), columns)
	for name, target := range req.ColumnMapping {
		mapping[name] = target
	}

	defaultColumn := req.DefaultColumnID
	if defaultColumn == "" {
		defaultColumn = firstColumn(columns)
	}
	if defaultColumn == "" && needsDefaultColumn(parsed.Tasks, mapping) {
		return ImportRequest{}, ErrNoDefaultColumn
	}

	return ImportRequest{
		Tasks:           parsed.Tasks,
		IdeaID:          req.IdeaID,
		ActorID:         req.ActorID,
		ExistingColumns: columns,
		ColumnMapping:   mapping,
		DefaultColumnID: defaultColumn,
		ExistingLabels:  labels,
		TeamMembers:     members,
	}, nil
}

func firstColumn(columns []board.Column) string {
	if len(columns) == 0 {
		return ""
	}
	sorted := append([]board.Column(nil), columns...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return sorted[0].ID
}

// needsDefaultColumn reports whether any task would not land in a mapped
// or to-be-created column.
func needsDefaultColumn(tasks []ImportTask, mapping ColumnMapping) bool {
	for _, t := range tasks {
		if t.ColumnName == "" {
			return true
		}
		if target, ok := mapping[t.ColumnName]; !ok || target == "" {
			return true
		}
	}
	return false
}

// StartImport prepares the run and executes it in the background.
// Returns the run id immediately; use SubscribeProgress to follow it.
//
// Returns ErrTooManyImports if no import slot frees up in time.
func (s *Service) StartImport(ctx context.Context, req StartRequest) (string, error) {
	if req.Mode == "" {
		req.Mode = ModeBulk
	}

	importReq, err := s.Prepare(ctx, req)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)

	run := &activeRun{
		ID:     runID,
		IdeaID: req.IdeaID,
		Mode:   req.Mode,
		Cancel: cancel,
		progress: RunProgress{
			RunID:          runID,
			IdeaID:         req.IdeaID,
			Mode:           req.Mode,
			ImportProgress: ImportProgress{Phase: PhaseStarting, Total: len(importReq.Tasks)},
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in import run",
					"run_id", runID,
					"idea_id", req.IdeaID,
					"panic", r,
				)
				s.finish(run, &RunResult{
					RunID:  runID,
					IdeaID: req.IdeaID,
					Mode:   req.Mode,
					Error:  fmt.Sprintf("internal error: %v", r),
				})
			}
		}()
		s.execute(runCtx, run, importReq)
	}()

	return runID, nil
}

func (s *Service) execute(ctx context.Context, run *activeRun, req ImportRequest) {
	start := time.Now()
	result := &RunResult{
		RunID:  run.ID,
		IdeaID: run.IdeaID,
		Mode:   run.Mode,
		Total:  len(req.Tasks),
		Errors: []string{},
		Failed: []FailedTask{},
	}

	switch run.Mode {
	case ModeSequential:
		total := len(req.Tasks)
		done := 0
		advance := func() {
			done++
			run.update(func(p *RunProgress) {
				p.ImportProgress = ImportProgress{Phase: PhaseTasks, Current: done, Total: total}
			})
		}
		res, err := s.importer.InsertTasksSequentially(ctx, req, SequentialCallbacks{
			OnSetupComplete: func(SetupSummary) {
				run.update(func(p *RunProgress) {
					p.ImportProgress = ImportProgress{Phase: PhaseTasks, Total: total}
				})
			},
			OnTaskCreated: func(int, string) {
				run.update(func(p *RunProgress) { p.Created++ })
				advance()
			},
			OnTaskError: func(int, string, error) {
				run.update(func(p *RunProgress) { p.Failed++ })
				advance()
			},
		})
		result.Created = res.Created
		result.Failed = res.Failed
		result.ColumnsCreated = res.ColumnsCreated
		result.LabelsCreated = res.LabelsCreated
		result.Cancelled = res.Cancelled
		if err != nil {
			result.Error = err.Error()
		}

	default:
		res, err := s.importer.ExecuteBulkImport(ctx, req, func(p ImportProgress) {
			run.update(func(rp *RunProgress) { rp.ImportProgress = p })
		})
		result.Created = res.Created
		result.Errors = res.Errors
		if err != nil {
			result.Error = err.Error()
		}
	}

	result.Duration = time.Since(start)
	s.finish(run, result)
}

// finish publishes the final state and schedules cleanup.
func (s *Service) finish(run *activeRun, result *RunResult) {
	run.mu.Lock()
	if run.result != nil {
		run.mu.Unlock()
		return
	}
	run.result = result
	run.progress.Created = result.Created
	run.progress.Failed = len(result.Failed)
	switch {
	case result.Error != "":
		run.progress.Phase = PhaseFailed
		run.progress.Error = result.Error
	case result.Cancelled:
		run.progress.Phase = PhaseCancelled
	default:
		run.progress.Phase = PhaseComplete
		run.progress.Current = run.progress.Total
	}
	run.mu.Unlock()

	s.logger.Info("import run finished",
		"run_id", run.ID,
		"idea_id", run.IdeaID,
		"mode", run.Mode,
		"created", result.Created,
		"errors", len(result.Errors),
		"failed", len(result.Failed),
		"cancelled", result.Cancelled,
		"duration_ms", result.Duration.Milliseconds(),
	)

	run.notifyProgress()
	run.closeListeners()
	s.cleanup(run.ID, s.cfg.ResultRetention)
}

// SubscribeProgress returns a channel of progress updates for a run.
// The channel is closed when the run finishes.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan RunProgress, 10)

	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()

	select {
	case ch <- run.snapshot():
	default:
	}

	select {
	case <-run.Done:
		close(ch)
	default:
		run.listeners = append(run.listeners, ch)
	}

	return ch, nil
}

// CancelImport stops a sequential run before its next task.
func (s *Service) CancelImport(runID string) error {
	run, err := s.lookup(runID)
	if err != nil {
		return err
	}
	if run.Mode != ModeSequential {
		return ErrNotCancellable
	}
	run.Cancel()
	return nil
}

// GetImportResult blocks until the run finishes, or ctx is done, and
// returns its result.
func (s *Service) GetImportResult(ctx context.Context, runID string) (*RunResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, nil
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(runID string) (RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunProgress{}, err
	}
	return run.snapshot(), nil
}

// LimiterStatus reports how many runs are active.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until all running imports have finished and their
// activity writes have landed, or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return err
	}
	s.importer.Wait()
	return nil
}

func (s *Service) lookup(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// cleanup forgets a finished run after delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (run *activeRun) snapshot() RunProgress {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress
}

func (run *activeRun) update(fn func(*RunProgress)) {
	run.mu.Lock()
	fn(&run.progress)
	run.mu.Unlock()
	run.notifyProgress()
}

// notifyProgress sends the current progress to every listener. Slow
// listeners miss updates rather than blocking the run.
func (run *activeRun) notifyProgress() {
	p := run.snapshot()

	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()

	for _, ch := range run.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// closeListeners marks the run done and closes every listener channel.
func (run *activeRun) closeListeners() {
	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()

	close(run.Done)
	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
}
