package importer

import "strings"

// headerAliases resolves a lower-cased, trimmed CSV header to a task field.
var headerAliases = map[string]CSVField{
	"title":     FieldTitle,
	"name":      FieldTitle,
	"task":      FieldTitle,
	"task name": FieldTitle,
	"summary":   FieldTitle,
	"card name": FieldTitle,

	"description": FieldDescription,
	"notes":       FieldDescription,
	"details":     FieldDescription,
	"desc":        FieldDescription,
	"body":        FieldDescription,

	"column": FieldColumn,
	"status": FieldColumn,
	"list":   FieldColumn,
	"stage":  FieldColumn,
	"state":  FieldColumn,

	"assignee":    FieldAssignee,
	"owner":       FieldAssignee,
	"assigned to": FieldAssignee,
	"assigned":    FieldAssignee,
	"responsible": FieldAssignee,

	"due":      FieldDueDate,
	"due date": FieldDueDate,
	"deadline": FieldDueDate,
	"date":     FieldDueDate,
	"due_date": FieldDueDate,

	"labels":     FieldLabels,
	"tags":       FieldLabels,
	"label":      FieldLabels,
	"tag":        FieldLabels,
	"categories": FieldLabels,
}

// AutoDetectCSVMapping guesses a field for every header. Each field is
// claimed by the first header that resolves to it; later duplicates and
// unknown headers map to FieldSkip.
func AutoDetectCSVMapping(headers []string) CSVFieldMapping {
	mapping := make(CSVFieldMapping, len(headers))
	claimed := make(map[CSVField]bool)

	for i, h := range headers {
		field, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok || claimed[field] {
			mapping[i] = FieldSkip
			continue
		}
		claimed[field] = true
		mapping[i] = field
	}

	return mapping
}

// CSVToImportTasks converts data rows (header row excluded) into tasks using
// mapping. Rows without a title are skipped and unparseable due dates are
// dropped.
func CSVToImportTasks(rows [][]string, headers []string, mapping CSVFieldMapping) []ImportTask {
	tasks := make([]ImportTask, 0, len(rows))

	for _, row := range rows {
		var task ImportTask

		for i := range headers {
			if i >= len(row) {
				break
			}
			value := cleanCell(row[i])
			if value == "" {
				continue
			}

			switch mapping[i] {
			case FieldTitle:
				task.Title = value
			case FieldDescription:
				task.Description = value
			case FieldColumn:
				task.ColumnName = value
			case FieldAssignee:
				task.AssigneeName = value
			case FieldDueDate:
				if d, ok := ParseDueDate(value); ok {
					task.DueDate = d
				}
			case FieldLabels:
				task.Labels = append(task.Labels, splitLabels(value)...)
			}
		}

		if task.Title == "" {
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks
}

// splitLabels splits a label cell on , ; and |.
func splitLabels(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}
