package importer

import (
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
)

// AutoMapColumns matches each distinct source column name to an existing
// column by trimmed, case-insensitive title. Names without a match map to
// NewColumn.
func AutoMapColumns(sourceNames []string, existing []board.Column) ColumnMapping {
	byTitle := make(map[string]string, len(existing))
	for _, c := range existing {
		key := board.NormalizeName(c.Title)
		if _, dup := byTitle[key]; !dup {
			byTitle[key] = c.ID
		}
	}

	mapping := make(ColumnMapping)
	for _, name := range sourceNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, seen := mapping[name]; seen {
			continue
		}
		if id, ok := byTitle[board.NormalizeName(name)]; ok {
			mapping[name] = id
		} else {
			mapping[name] = NewColumn
		}
	}
	return mapping
}

// SourceColumnNames returns the distinct column names referenced by tasks,
// in first-seen order.
func SourceColumnNames(tasks []ImportTask) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range tasks {
		if t.ColumnName == "" || seen[t.ColumnName] {
			continue
		}
		seen[t.ColumnName] = true
		names = append(names, t.ColumnName)
	}
	return names
}
