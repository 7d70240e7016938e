package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/importer"
	"gopkg.in/yaml.v3"
)

// mappingFile is the YAML document passed with --mapping:
//
//	csv:
//	  Task Name: title
//	  Stage: column
//	  Notes: skip
//	columns:
//	  Backlog: 3f2a...   # existing column id
//	  Ideas: __new__     # create the column
//	default_column: 3f2a...
//
// A csv section replaces header auto-detection entirely; headers it does
// not name are ignored.
type mappingFile struct {
	CSV           map[string]importer.CSVField `yaml:"csv"`
	Columns       importer.ColumnMapping       `yaml:"columns"`
	DefaultColumn string                       `yaml:"default_column"`
}

func loadMapping(path string) (*mappingFile, error) {
	if path == "" {
		return &mappingFile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	var m mappingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}

	for header, field := range m.CSV {
		if !field.Valid() {
			return nil, fmt.Errorf("mapping %s: header %q maps to unknown field %q", path, header, field)
		}
	}
	for name, target := range m.Columns {
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("mapping %s: column %q has an empty target", path, name)
		}
	}
	return &m, nil
}

// csvMapping resolves the header names of the csv section against the
// header row of data.
func (m *mappingFile) csvMapping(data []byte) (importer.CSVFieldMapping, error) {
	if len(m.CSV) == 0 {
		return nil, nil
	}

	rows := importer.ParseCSV(strings.TrimPrefix(string(data), "\ufeff"))
	if len(rows) == 0 {
		return nil, errors.New("mapping has a csv section but the input has no header row")
	}
	headers := rows[0]

	mapping := make(importer.CSVFieldMapping, len(m.CSV))
	var missing []string
	for name, field := range m.CSV {
		idx := headerIndex(headers, name)
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		mapping[idx] = field
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("mapping names headers not in the input: %s", strings.Join(missing, ", "))
	}
	return mapping, nil
}

func headerIndex(headers []string, name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range headers {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}
