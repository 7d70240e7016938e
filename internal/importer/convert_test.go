package importer

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseDueDate Tests
// ----------------------------------------------------------------------------

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		// ISO
		{name: "iso date", input: "2024-03-15", want: "2024-03-15", wantOK: true},
		{name: "iso with whitespace", input: "  2024-03-15 ", want: "2024-03-15", wantOK: true},
		{name: "slashed iso", input: "2024/03/15", want: "2024-03-15", wantOK: true},
		{name: "compact", input: "20240315", want: "2024-03-15", wantOK: true},

		// Timestamps
		{name: "utc timestamp", input: "2024-03-15T23:30:00Z", want: "2024-03-15", wantOK: true},
		{name: "millisecond timestamp", input: "2024-03-15T12:00:00.000Z", want: "2024-03-15", wantOK: true},
		{name: "offset timestamp moves to utc day", input: "2024-03-15T23:30:00-05:00", want: "2024-03-16", wantOK: true},
		{name: "space separated timestamp", input: "2024-03-15 08:00:00", want: "2024-03-15", wantOK: true},

		// Spreadsheet styles
		{name: "us padded", input: "03/15/2024", want: "2024-03-15", wantOK: true},
		{name: "us unpadded", input: "3/5/2024", want: "2024-03-05", wantOK: true},
		{name: "dashed", input: "3-5-2024", want: "2024-03-05", wantOK: true},
		{name: "day first is not guessed", input: "15/03/2024", wantOK: false},

		// Month names
		{name: "short month", input: "Jan 15, 2024", want: "2024-01-15", wantOK: true},
		{name: "long month", input: "January 15 2024", want: "2024-01-15", wantOK: true},
		{name: "day month year", input: "15 January 2024", want: "2024-01-15", wantOK: true},

		// Invalid
		{name: "empty", input: "", wantOK: false},
		{name: "whitespace", input: "   ", wantOK: false},
		{name: "text", input: "next tuesday", wantOK: false},
		{name: "month out of range", input: "2024-13-01", wantOK: false},
		{name: "day out of range", input: "2024-02-30", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDueDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDueDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseDueDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDueDate_TwoDigitYears(t *testing.T) {
	orig := timeNow
	timeNow = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { timeNow = orig }()

	tests := []struct {
		input string
		want  string
	}{
		{"3/15/24", "2024-03-15"},
		{"03/15/45", "2045-03-15"},
		{"3/15/60", "1960-03-15"},
		{"3/15/99", "1999-03-15"},
	}

	for _, tt := range tests {
		got, ok := ParseDueDate(tt.input)
		if !ok || got != tt.want {
			t.Errorf("ParseDueDate(%q) = %q, %v, want %q", tt.input, got, ok, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// cleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  plain  ", "plain"},
		{`="00123"`, "00123"},
		{` =" padded " `, "padded"},
		{`="`, `="`},
		{`=SUM(A1)`, `=SUM(A1)`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := cleanCell(tt.input); got != tt.want {
			t.Errorf("cleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
