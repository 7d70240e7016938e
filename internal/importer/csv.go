package importer

import "strings"

// ParseCSV splits CSV text into rows of trimmed fields.
//
// Commas and line breaks separate fields and rows only outside double
// quotes, "" inside quotes is a literal quote, and CR, LF and CRLF all end a
// row. Rows whose fields are all empty are dropped. Malformed quoting is
// never an error: an unterminated quote simply runs to the end of input.
func ParseCSV(text string) [][]string {
	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	flushField := func() {
		row = append(row, strings.TrimSpace(field.String()))
		field.Reset()
	}
	flushRow := func() {
		flushField()
		if !allEmpty(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if inQuotes {
			if ch == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			field.WriteRune(ch)
			continue
		}

		switch ch {
		case '"':
			inQuotes = true
		case ',':
			flushField()
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			flushRow()
		case '\n':
			flushRow()
		default:
			field.WriteRune(ch)
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		flushRow()
	}

	return rows
}

func allEmpty(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
