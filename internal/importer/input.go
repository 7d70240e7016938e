package importer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Format is the kind of input handed to ParseInput.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json" // Trello or custom, detected from structure
	FormatTrello Format = "trello"
	FormatCustom Format = "custom"
	FormatText   Format = "text"
)

var (
	// ErrUnknownFormat is returned for a Format value ParseInput does not know.
	ErrUnknownFormat = errors.New("unknown import format")

	// ErrUnrecognizedJSON is returned when a JSON document is neither a
	// Trello export nor a custom export.
	ErrUnrecognizedJSON = errors.New("unrecognized json export")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParsedInput is the result of ParseInput.
type ParsedInput struct {
	Format Format       `json:"format"`
	Tasks  []ImportTask `json:"tasks"`

	// Set for CSV input only.
	Headers    []string        `json:"headers,omitempty"`
	CSVMapping CSVFieldMapping `json:"csv_mapping,omitempty"`
}

// ParseInput converts raw export data into tasks. For CSV, the first row is
// the header row; csvMapping overrides the auto-detected mapping when it is
// non-empty.
func ParseInput(format Format, data []byte, csvMapping CSVFieldMapping) (*ParsedInput, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	switch format {
	case FormatCSV:
		rows := ParseCSV(string(data))
		if len(rows) == 0 {
			return &ParsedInput{Format: FormatCSV}, nil
		}
		headers := rows[0]
		mapping := csvMapping
		if len(mapping) == 0 {
			mapping = AutoDetectCSVMapping(headers)
		}
		return &ParsedInput{
			Format:     FormatCSV,
			Tasks:      CSVToImportTasks(rows[1:], headers, mapping),
			Headers:    headers,
			CSVMapping: mapping,
		}, nil

	case FormatJSON:
		switch DetectJSONFormat(data) {
		case JSONTrello:
			return ParseInput(FormatTrello, data, nil)
		case JSONCustom:
			return ParseInput(FormatCustom, data, nil)
		default:
			return nil, ErrUnrecognizedJSON
		}

	case FormatTrello:
		tasks, err := ParseTrelloJSON(data)
		if err != nil {
			return nil, err
		}
		return &ParsedInput{Format: FormatTrello, Tasks: tasks}, nil

	case FormatCustom:
		tasks, err := ParseCustomJSON(data)
		if err != nil {
			return nil, err
		}
		return &ParsedInput{Format: FormatCustom, Tasks: tasks}, nil

	case FormatText:
		return &ParsedInput{Format: FormatText, Tasks: ParseBulkText(string(data))}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// FormatFromFilename guesses a Format from a file extension.
func FormatFromFilename(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	default:
		return FormatText
	}
}
