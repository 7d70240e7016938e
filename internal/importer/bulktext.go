package importer

import (
	"regexp"
	"strings"
)

var (
	checklistLine = regexp.MustCompile(`^\s*[-*]\s*\[( |x|X)\]\s*(.*)$`)
	titlePrefix   = regexp.MustCompile(`^(?:[-*]|\d+\.)(?:\s+|$)`)
)

// ParseBulkText reads one task per line. "- [ ]" and "- [x]" lines become
// checklist items of the most recent task; checklist lines before any task
// are discarded. A single leading "- ", "* " or "N. " is stripped from
// task lines.
func ParseBulkText(text string) []ImportTask {
	var (
		tasks   []ImportTask
		current = -1
	)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := checklistLine.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[2])
			if current < 0 || item == "" {
				continue
			}
			tasks[current].ChecklistItems = append(tasks[current].ChecklistItems, item)
			continue
		}

		title := strings.TrimSpace(titlePrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if title == "" {
			continue
		}
		tasks = append(tasks, ImportTask{Title: title})
		current = len(tasks) - 1
	}

	return tasks
}
