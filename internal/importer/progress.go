package importer

// ImportPhase represents the current phase of an import run.
type ImportPhase string

const (
	PhaseStarting  ImportPhase = "starting"
	PhaseColumns   ImportPhase = "columns"
	PhaseLabels    ImportPhase = "labels"
	PhaseAssignees ImportPhase = "assignees"
	PhasePositions ImportPhase = "positions"
	PhaseTasks     ImportPhase = "tasks"
	PhaseRelations ImportPhase = "relations"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
	PhaseCancelled ImportPhase = "cancelled"
)

// ImportProgress is reported before each phase of a bulk import and after
// each task of a sequential one.
type ImportProgress struct {
	Phase   ImportPhase `json:"phase"`
	Current int         `json:"current"`
	Total   int         `json:"total"`
}

// Percent returns completion as 0-100.
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Current * 100 / p.Total
}

// ProgressFunc receives bulk import progress. It runs on the import
// goroutine and must not block.
type ProgressFunc func(ImportProgress)

// SetupSummary reports how many columns and labels a sequential run created
// before inserting tasks.
type SetupSummary struct {
	Columns int `json:"columns"`
	Labels  int `json:"labels"`
}

// SequentialCallbacks receive live feedback from InsertTasksSequentially.
// Any field may be nil.
type SequentialCallbacks struct {
	OnTaskCreated   func(index int, title string)
	OnTaskError     func(index int, title string, err error)
	OnSetupComplete func(SetupSummary)
}

// BulkImportResult is the outcome of ExecuteBulkImport.
type BulkImportResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

// FailedTask records a task the sequential strategy could not write.
type FailedTask struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// SequentialInsertResult is the outcome of InsertTasksSequentially.
type SequentialInsertResult struct {
	Created        int          `json:"created"`
	Failed         []FailedTask `json:"failed"`
	ColumnsCreated int          `json:"columns_created"`
	LabelsCreated  int          `json:"labels_created"`
	Cancelled      bool         `json:"cancelled"`
}
