package importer

import (
	"context"
	"sort"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// LabelPalette is the fixed set of colors assigned to created labels.
// Consecutive labels on a board walk the palette in order.
var LabelPalette = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#eab308", // yellow
	"#22c55e", // green
	"#14b8a6", // teal
	"#3b82f6", // blue
	"#6366f1", // indigo
	"#a855f7", // purple
	"#ec4899", // pink
	"#64748b", // slate
}

// paletteColor returns the color for the n-th label on a board.
func paletteColor(n int) string {
	return LabelPalette[n%len(LabelPalette)]
}

// newColumnNames lists the columns to create for source names mapped to
// NewColumn: names used by tasks first, in task order, then any remaining
// mapping keys sorted. Names that differ only in case or surrounding space
// share one column, titled by the first spelling seen.
func newColumnNames(tasks []ImportTask, mapping ColumnMapping) []string {
	var names []string
	seen := make(map[string]bool)
	planned := make(map[string]bool)
	add := func(name string) {
		key := board.NormalizeName(name)
		if key == "" || planned[key] {
			return
		}
		planned[key] = true
		names = append(names, name)
	}

	for _, t := range tasks {
		if t.ColumnName == "" || seen[t.ColumnName] {
			continue
		}
		seen[t.ColumnName] = true
		if mapping[t.ColumnName] == NewColumn {
			add(t.ColumnName)
		}
	}

	var rest []string
	for name, target := range mapping {
		if target == NewColumn && !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name)
	}

	return names
}

// planColumns lays out new columns after the right-most existing column.
func planColumns(req ImportRequest, names []string, gap int) []board.Column {
	pos := -gap
	for _, c := range req.ExistingColumns {
		if c.Position > pos {
			pos = c.Position
		}
	}

	cols := make([]board.Column, 0, len(names))
	for _, name := range names {
		pos += gap
		cols = append(cols, board.Column{
			IdeaID:   req.IdeaID,
			Title:    strings.TrimSpace(name),
			Position: pos,
		})
	}
	return cols
}

// applyColumns points every source name mapped to NewColumn at the created
// column with the same normalized title, so all case variants of a name
// land in one column.
func applyColumns(mapping ColumnMapping, created []board.Column) {
	byTitle := make(map[string]string, len(created))
	for _, c := range created {
		byTitle[board.NormalizeName(c.Title)] = c.ID
	}
	for name, target := range mapping {
		if target != NewColumn {
			continue
		}
		if id, ok := byTitle[board.NormalizeName(name)]; ok {
			mapping[name] = id
		}
	}
}

// referencedLabels returns every label name used by tasks, deduplicated
// case-insensitively, in first-seen order.
func referencedLabels(tasks []ImportTask) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range tasks {
		for _, l := range t.Labels {
			key := board.NormalizeName(l)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, strings.TrimSpace(l))
		}
	}
	return names
}

// missingLabels filters names down to those with no existing label.
func missingLabels(names []string, existing []board.Label) []string {
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[board.NormalizeName(l.Name)] = true
	}
	var missing []string
	for _, n := range names {
		if !have[board.NormalizeName(n)] {
			missing = append(missing, n)
		}
	}
	return missing
}

// planLabels assigns palette colors to new labels, continuing after the
// labels the board already has.
func planLabels(req ImportRequest, names []string) []board.Label {
	labels := make([]board.Label, 0, len(names))
	for i, name := range names {
		labels = append(labels, board.Label{
			IdeaID: req.IdeaID,
			Name:   name,
			Color:  paletteColor(len(req.ExistingLabels) + i),
		})
	}
	return labels
}

// labelIndex maps normalized label names to ids.
func labelIndex(sets ...[]board.Label) map[string]string {
	idx := make(map[string]string)
	for _, set := range sets {
		for _, l := range set {
			idx[board.NormalizeName(l.Name)] = l.ID
		}
	}
	return idx
}

// assigneeIndex maps normalized full names and emails to user ids.
func assigneeIndex(members []board.TeamMember) map[string]string {
	idx := make(map[string]string, len(members)*2)
	for _, m := range members {
		if key := board.NormalizeName(m.FullName); key != "" {
			idx[key] = m.UserID
		}
		if key := board.NormalizeName(m.Email); key != "" {
			idx[key] = m.UserID
		}
	}
	return idx
}

// targetColumn resolves the column a task is placed in.
func targetColumn(t ImportTask, mapping ColumnMapping, defaultColumnID string) string {
	if t.ColumnName != "" {
		if id, ok := mapping[t.ColumnName]; ok && id != NewColumn && id != "" {
			return id
		}
	}
	return defaultColumnID
}

// touchedColumns lists the columns that will receive at least one task.
func touchedColumns(tasks []ImportTask, mapping ColumnMapping, defaultColumnID string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range tasks {
		id := targetColumn(t, mapping, defaultColumnID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// positions hands out task positions per column. Each column starts from
// its current maximum, or one gap below zero when it is empty, so the first
// task placed in an empty column lands on 0.
type positions struct {
	gap  int
	last map[string]int
}

func newPositions(gap int) *positions {
	return &positions{gap: gap, last: make(map[string]int)}
}

// seed loads the current maximum for each column. On error every column
// starts from the empty-column sentinel.
func (p *positions) seed(ctx context.Context, store Store, columnIDs []string) error {
	if len(columnIDs) == 0 {
		return nil
	}
	current, err := store.MaxTaskPositions(ctx, columnIDs)
	for _, id := range columnIDs {
		if v, ok := current[id]; ok && err == nil {
			p.last[id] = v
		} else {
			p.last[id] = -p.gap
		}
	}
	return err
}

func (p *positions) next(columnID string) int {
	v, ok := p.last[columnID]
	if !ok {
		v = -p.gap
	}
	v += p.gap
	p.last[columnID] = v
	return v
}

// taskRow builds the storage row for t.
func taskRow(req ImportRequest, t ImportTask, columnID string, position int, assignees map[string]string) board.Task {
	return board.Task{
		IdeaID:      req.IdeaID,
		ColumnID:    columnID,
		Title:       t.Title,
		Description: t.Description,
		AssigneeID:  assignees[board.NormalizeName(t.AssigneeName)],
		Position:    position,
		DueDate:     t.DueDate,
		CreatedBy:   req.ActorID,
	}
}

// relations builds label joins and checklist rows for a written task.
// Label names without a known label are skipped.
func relations(created board.Task, src ImportTask, labels map[string]string, gap int) ([]board.TaskLabel, []board.ChecklistItem) {
	var joins []board.TaskLabel
	seen := make(map[string]bool)
	for _, name := range src.Labels {
		id, ok := labels[board.NormalizeName(name)]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		joins = append(joins, board.TaskLabel{TaskID: created.ID, LabelID: id})
	}

	items := make([]board.ChecklistItem, 0, len(src.ChecklistItems))
	for i, title := range src.ChecklistItems {
		items = append(items, board.ChecklistItem{
			TaskID:   created.ID,
			Title:    title,
			Position: i * gap,
		})
	}

	return joins, items
}

// chunk splits n items into [start, end) ranges of at most size.
func chunk(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
