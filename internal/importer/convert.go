package importer

// convert.go turns the free-form date strings found in exports into
// date-only ISO strings.
//
// Exports are messy:
//   - ISO timestamps from JSON tools (2024-03-15T12:00:00.000Z)
//   - US and EU style dates typed into spreadsheets
//   - month names ("Jan 15, 2024")
//
// Anything that cannot be read as a date is reported as not ok and the
// caller drops the value.

import (
	"strings"
	"time"
)

// DateLayout is the format of ImportTask.DueDate.
const DateLayout = "2006-01-02"

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

var timeNow = time.Now

var (
	timestampLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006",
		"2 Jan 2006", "2 January 2006", "Mon, 2 Jan 2006", "Mon Jan 2 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
)

// ParseDueDate leniently parses s and returns it as YYYY-MM-DD.
// Timestamps are truncated to their UTC calendar date.
func ParseDueDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(DateLayout), true
		}
	}

	// 4-digit years first, they are unambiguous
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}

	pivotYear := timeNow().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.Format(DateLayout), true
		}
	}

	return "", false
}

// cleanCell trims whitespace and strips the Excel formula prefix (="value")
// that spreadsheet exports put around values they want kept as text.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
