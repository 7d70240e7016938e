// Package memory is an in-process board store. It backs dry-run imports and
// lets tests inject storage failures per operation.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/google/uuid"
)

// Op names a store operation for fault injection and call counting.
type Op string

const (
	OpInsertColumns        Op = "insert_columns"
	OpFindColumns          Op = "find_columns"
	OpInsertLabels         Op = "insert_labels"
	OpFindLabels           Op = "find_labels"
	OpMaxTaskPositions     Op = "max_task_positions"
	OpInsertTasks          Op = "insert_tasks"
	OpInsertTaskLabels     Op = "insert_task_labels"
	OpInsertChecklistItems Op = "insert_checklist_items"
	OpInsertActivity       Op = "insert_activity"
)

// Fault decides whether the call-th call (1-based) of op fails. When err is
// non-nil and commit is true the rows are still written, which models a
// write that landed but whose acknowledgement was lost.
type Fault func(op Op, call int) (commit bool, err error)

// Store keeps board entities in memory. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	columns    []board.Column
	labels     []board.Label
	tasks      []board.Task
	taskLabels []board.TaskLabel
	checklist  []board.ChecklistItem
	activity   []board.Activity
	members    map[string][]board.TeamMember

	calls map[Op]int
	fault Fault
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		members: make(map[string][]board.TeamMember),
		calls:   make(map[Op]int),
	}
}

// SetFault installs f; nil removes fault injection.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// FailN returns a Fault that fails the first n calls of op with err
// without writing anything.
func FailN(op Op, n int, err error) Fault {
	return func(got Op, call int) (bool, error) {
		if got == op && call <= n {
			return false, err
		}
		return false, nil
	}
}

// Calls returns how many times op has been called.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// begin counts the call and consults the fault. Must hold s.mu.
func (s *Store) begin(op Op) (commit bool, err error) {
	s.calls[op]++
	if s.fault == nil {
		return true, nil
	}
	commit, err = s.fault(op, s.calls[op])
	if err == nil {
		commit = true
	}
	return commit, err
}

// SeedColumns adds existing columns, assigning ids where missing.
func (s *Store) SeedColumns(cols ...board.Column) []board.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range cols {
		if cols[i].ID == "" {
			cols[i].ID = uuid.NewString()
		}
	}
	s.columns = append(s.columns, cols...)
	return cols
}

// SeedLabels adds existing labels, assigning ids where missing.
func (s *Store) SeedLabels(labels ...board.Label) []board.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range labels {
		if labels[i].ID == "" {
			labels[i].ID = uuid.NewString()
		}
	}
	s.labels = append(s.labels, labels...)
	return labels
}

// SeedTasks adds existing tasks, assigning ids where missing.
func (s *Store) SeedTasks(tasks ...board.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
	}
	s.tasks = append(s.tasks, tasks...)
}

// SeedMembers adds team members to a board.
func (s *Store) SeedMembers(ideaID string, members ...board.TeamMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[ideaID] = append(s.members[ideaID], members...)
}

// AddTeamMember adds or replaces a board member.
func (s *Store) AddTeamMember(ctx context.Context, ideaID string, m board.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.members[ideaID] {
		if existing.UserID == m.UserID {
			s.members[ideaID][i] = m
			return nil
		}
	}
	s.members[ideaID] = append(s.members[ideaID], m)
	return nil
}

// InsertColumns implements importer.Store. Titles must be unique per board
// after trimming and case folding, within the batch as well as against
// stored columns; a duplicate writes nothing.
func (s *Store) InsertColumns(ctx context.Context, cols []board.Column) ([]board.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.begin(OpInsertColumns)
	if !commit {
		return nil, err
	}
	batch := make(map[string]bool, len(cols))
	for _, c := range cols {
		key := c.IdeaID + "\x00" + board.NormalizeName(c.Title)
		if batch[key] || s.hasColumn(c.IdeaID, c.Title) {
			return nil, board.ErrDuplicate
		}
		batch[key] = true
	}

	out := make([]board.Column, len(cols))
	for i, c := range cols {
		c.ID = uuid.NewString()
		s.columns = append(s.columns, c)
		out[i] = c
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) hasColumn(ideaID, title string) bool {
	key := board.NormalizeName(title)
	for _, c := range s.columns {
		if c.IdeaID == ideaID && board.NormalizeName(c.Title) == key {
			return true
		}
	}
	return false
}

// FindColumnsByTitle implements importer.Store.
func (s *Store) FindColumnsByTitle(ctx context.Context, ideaID string, titles []string) ([]board.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.begin(OpFindColumns); err != nil {
		return nil, err
	}
	want := nameSet(titles)
	var out []board.Column
	for _, c := range s.columns {
		if c.IdeaID == ideaID && want[board.NormalizeName(c.Title)] {
			out = append(out, c)
		}
	}
	return out, nil
}

// InsertLabels implements importer.Store.
func (s *Store) InsertLabels(ctx context.Context, labels []board.Label) ([]board.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.begin(OpInsertLabels)
	if !commit {
		return nil, err
	}
	batch := make(map[string]bool, len(labels))
	for _, l := range labels {
		key := l.IdeaID + "\x00" + board.NormalizeName(l.Name)
		if batch[key] || s.hasLabel(l.IdeaID, l.Name) {
			return nil, board.ErrDuplicate
		}
		batch[key] = true
	}

	out := make([]board.Label, len(labels))
	for i, l := range labels {
		l.ID = uuid.NewString()
		s.labels = append(s.labels, l)
		out[i] = l
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) hasLabel(ideaID, name string) bool {
	key := board.NormalizeName(name)
	for _, l := range s.labels {
		if l.IdeaID == ideaID && board.NormalizeName(l.Name) == key {
			return true
		}
	}
	return false
}

// FindLabelsByName implements importer.Store.
func (s *Store) FindLabelsByName(ctx context.Context, ideaID string, names []string) ([]board.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.begin(OpFindLabels); err != nil {
		return nil, err
	}
	want := nameSet(names)
	var out []board.Label
	for _, l := range s.labels {
		if l.IdeaID == ideaID && want[board.NormalizeName(l.Name)] {
			out = append(out, l)
		}
	}
	return out, nil
}

// MaxTaskPositions implements importer.Store.
func (s *Store) MaxTaskPositions(ctx context.Context, columnIDs []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.begin(OpMaxTaskPositions); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(columnIDs))
	for _, id := range columnIDs {
		want[id] = true
	}
	out := make(map[string]int)
	for _, t := range s.tasks {
		if !want[t.ColumnID] {
			continue
		}
		if cur, ok := out[t.ColumnID]; !ok || t.Position > cur {
			out[t.ColumnID] = t.Position
		}
	}
	return out, nil
}

// InsertTasks implements importer.Store.
func (s *Store) InsertTasks(ctx context.Context, tasks []board.Task) ([]board.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.begin(OpInsertTasks)
	if !commit {
		return nil, err
	}
	out := make([]board.Task, len(tasks))
	for i, t := range tasks {
		t.ID = uuid.NewString()
		s.tasks = append(s.tasks, t)
		out[i] = t
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertTaskLabels implements importer.Store.
func (s *Store) InsertTaskLabels(ctx context.Context, rows []board.TaskLabel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.begin(OpInsertTaskLabels)
	if commit {
		s.taskLabels = append(s.taskLabels, rows...)
	}
	return err
}

// InsertChecklistItems implements importer.Store.
func (s *Store) InsertChecklistItems(ctx context.Context, items []board.ChecklistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.begin(OpInsertChecklistItems)
	if commit {
		for _, it := range items {
			it.ID = uuid.NewString()
			s.checklist = append(s.checklist, it)
		}
	}
	return err
}

// InsertActivity implements importer.Store.
func (s *Store) InsertActivity(ctx context.Context, entries []board.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.begin(OpInsertActivity)
	if commit {
		s.activity = append(s.activity, entries...)
	}
	return err
}

// ListColumns implements importer.BoardReader.
func (s *Store) ListColumns(ctx context.Context, ideaID string) ([]board.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []board.Column
	for _, c := range s.columns {
		if c.IdeaID == ideaID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// ListLabels implements importer.BoardReader.
func (s *Store) ListLabels(ctx context.Context, ideaID string) ([]board.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []board.Label
	for _, l := range s.labels {
		if l.IdeaID == ideaID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListTeamMembers implements importer.BoardReader.
func (s *Store) ListTeamMembers(ctx context.Context, ideaID string) ([]board.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.TeamMember(nil), s.members[ideaID]...), nil
}

// Columns returns every stored column.
func (s *Store) Columns() []board.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.Column(nil), s.columns...)
}

// Labels returns every stored label.
func (s *Store) Labels() []board.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.Label(nil), s.labels...)
}

// Tasks returns every stored task in insertion order.
func (s *Store) Tasks() []board.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.Task(nil), s.tasks...)
}

// TaskLabels returns every stored task-label join.
func (s *Store) TaskLabels() []board.TaskLabel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.TaskLabel(nil), s.taskLabels...)
}

// ChecklistItems returns every stored checklist item.
func (s *Store) ChecklistItems() []board.ChecklistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.ChecklistItem(nil), s.checklist...)
}

// Activity returns every stored activity entry.
func (s *Store) Activity() []board.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.Activity(nil), s.activity...)
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[board.NormalizeName(n)] = true
	}
	return set
}
