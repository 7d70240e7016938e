package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput_CSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFTitle,Status\nA,Todo\n")

	got, err := ParseInput(FormatCSV, data, nil)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, got.Format)
	assert.Equal(t, []string{"Title", "Status"}, got.Headers)
	assert.Equal(t, CSVFieldMapping{0: FieldTitle, 1: FieldColumn}, got.CSVMapping)
	assert.Equal(t, []ImportTask{{Title: "A", ColumnName: "Todo"}}, got.Tasks)
}

func TestParseInput_CSVMappingOverride(t *testing.T) {
	data := []byte("Title,Status\nA,Todo\n")

	got, err := ParseInput(FormatCSV, data, CSVFieldMapping{0: FieldDescription, 1: FieldTitle})
	require.NoError(t, err)

	assert.Equal(t, []ImportTask{{Title: "Todo", Description: "A"}}, got.Tasks)
}

func TestParseInput_EmptyCSV(t *testing.T) {
	got, err := ParseInput(FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Tasks)
	assert.Empty(t, got.Headers)
}

func TestParseInput_JSONDetection(t *testing.T) {
	trello, err := ParseInput(FormatJSON, []byte(`{"lists": [{"id": "l", "name": "L"}], "cards": [{"name": "c", "idList": "l"}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, FormatTrello, trello.Format)
	assert.Equal(t, []ImportTask{{Title: "c", ColumnName: "L"}}, trello.Tasks)

	custom, err := ParseInput(FormatJSON, []byte(`{"tasks": [{"title": "t"}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, FormatCustom, custom.Format)

	_, err = ParseInput(FormatJSON, []byte(`{"items": []}`), nil)
	assert.ErrorIs(t, err, ErrUnrecognizedJSON)
}

func TestParseInput_Text(t *testing.T) {
	got, err := ParseInput(FormatText, []byte("- a\n- b\n"), nil)
	require.NoError(t, err)
	assert.Len(t, got.Tasks, 2)
}

func TestParseInput_UnknownFormat(t *testing.T) {
	_, err := ParseInput(Format("xlsx"), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatFromFilename(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromFilename("Export.CSV"))
	assert.Equal(t, FormatJSON, FormatFromFilename("board.json"))
	assert.Equal(t, FormatText, FormatFromFilename("todo.txt"))
	assert.Equal(t, FormatText, FormatFromFilename("-"))
}
