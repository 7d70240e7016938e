package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONFormat identifies the shape of a JSON export.
type JSONFormat string

const (
	JSONTrello  JSONFormat = "trello"
	JSONCustom  JSONFormat = "custom"
	JSONUnknown JSONFormat = "unknown"
)

// DetectJSONFormat sniffs the top-level structure of data. A document with
// both "lists" and "cards" arrays is Trello, even if it also has "tasks".
func DetectJSONFormat(data []byte) JSONFormat {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return JSONUnknown
	}

	if isJSONArray(doc["lists"]) && isJSONArray(doc["cards"]) {
		return JSONTrello
	}
	if isJSONArray(doc["tasks"]) {
		return JSONCustom
	}
	return JSONUnknown
}

func isJSONArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}

type trelloExport struct {
	Lists []trelloList `json:"lists"`
	Cards []trelloCard `json:"cards"`
}

type trelloList struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type trelloCard struct {
	Name       string            `json:"name"`
	Desc       string            `json:"desc"`
	IDList     string            `json:"idList"`
	Closed     bool              `json:"closed"`
	Due        string            `json:"due"`
	Labels     []trelloLabel     `json:"labels"`
	Checklists []trelloChecklist `json:"checklists"`
}

type trelloLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type trelloChecklist struct {
	CheckItems []trelloCheckItem `json:"checkItems"`
}

type trelloCheckItem struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// ParseTrelloJSON converts a Trello board export into tasks.
//
// Closed cards are skipped. Cards on a closed list keep their other fields
// but lose their column name. Every checklist on a card is flattened into
// one list of item names; completion state is not carried over.
func ParseTrelloJSON(data []byte) ([]ImportTask, error) {
	var export trelloExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("decode trello export: %w", err)
	}

	listNames := make(map[string]string, len(export.Lists))
	for _, l := range export.Lists {
		if l.Closed {
			continue
		}
		listNames[l.ID] = l.Name
	}

	tasks := make([]ImportTask, 0, len(export.Cards))
	for _, card := range export.Cards {
		if card.Closed {
			continue
		}
		title := strings.TrimSpace(card.Name)
		if title == "" {
			continue
		}

		task := ImportTask{
			Title:       title,
			Description: strings.TrimSpace(card.Desc),
			ColumnName:  strings.TrimSpace(listNames[card.IDList]),
			DueDate:     truncateDate(card.Due),
		}

		for _, l := range card.Labels {
			if name := strings.TrimSpace(l.Name); name != "" {
				task.Labels = append(task.Labels, name)
			}
		}

		for _, cl := range card.Checklists {
			for _, item := range cl.CheckItems {
				if name := strings.TrimSpace(item.Name); name != "" {
					task.ChecklistItems = append(task.ChecklistItems, name)
				}
			}
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// truncateDate keeps the calendar date of a timestamp as written, without
// shifting it to another zone.
func truncateDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(DateLayout) {
		if _, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return s[:len(DateLayout)]
		}
	}
	d, _ := ParseDueDate(s)
	return d
}

type customExport struct {
	Tasks []customTask `json:"tasks"`
}

type customTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Column      string   `json:"column"`
	Assignee    string   `json:"assignee"`
	DueDate     string   `json:"due_date"`
	Labels      []string `json:"labels"`
	Checklist   []string `json:"checklist"`
}

// ParseCustomJSON converts the application's own export format into tasks.
// Tasks without a title are dropped.
func ParseCustomJSON(data []byte) ([]ImportTask, error) {
	var export customExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("decode custom export: %w", err)
	}

	tasks := make([]ImportTask, 0, len(export.Tasks))
	for _, t := range export.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}

		task := ImportTask{
			Title:          title,
			Description:    strings.TrimSpace(t.Description),
			ColumnName:     strings.TrimSpace(t.Column),
			AssigneeName:   strings.TrimSpace(t.Assignee),
			Labels:         nonEmpty(t.Labels),
			ChecklistItems: nonEmpty(t.Checklist),
		}
		if d, ok := ParseDueDate(t.DueDate); ok {
			task.DueDate = d
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
