package importer

import "github.com/JonMunkholm/boardimport/internal/board"

// ImportTask is the canonical task every input adapter produces and both
// insertion strategies consume. Empty strings mean the field is absent.
type ImportTask struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	ColumnName     string   `json:"column_name,omitempty"`
	AssigneeName   string   `json:"assignee_name,omitempty"`
	DueDate        string   `json:"due_date,omitempty"` // YYYY-MM-DD
	Labels         []string `json:"labels,omitempty"`
	ChecklistItems []string `json:"checklist_items,omitempty"`
}

// CSVField is the canonical task field a CSV column feeds.
type CSVField string

const (
	FieldTitle       CSVField = "title"
	FieldDescription CSVField = "description"
	FieldColumn      CSVField = "column"
	FieldAssignee    CSVField = "assignee"
	FieldDueDate     CSVField = "due_date"
	FieldLabels      CSVField = "labels"
	FieldSkip        CSVField = "skip"
)

// Valid reports whether f is one of the known fields.
func (f CSVField) Valid() bool {
	switch f {
	case FieldTitle, FieldDescription, FieldColumn, FieldAssignee, FieldDueDate, FieldLabels, FieldSkip:
		return true
	}
	return false
}

// CSVFieldMapping maps a zero-based CSV column index to a task field.
type CSVFieldMapping map[int]CSVField

// NewColumn marks a source column name that has no existing board column
// and must be created during import.
const NewColumn = "__new__"

// ColumnMapping maps a source column name to an existing column id or
// NewColumn.
type ColumnMapping map[string]string

// ImportRequest carries everything an insertion strategy needs about the
// target board. ColumnMapping is updated in place as columns are created.
type ImportRequest struct {
	Tasks           []ImportTask
	IdeaID          string
	ActorID         string
	ExistingColumns []board.Column
	ColumnMapping   ColumnMapping
	DefaultColumnID string
	ExistingLabels  []board.Label
	TeamMembers     []board.TeamMember
}
