package importer

import (
	"context"
	"testing"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/board/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumnNames_CaseVariantsShareOneColumn(t *testing.T) {
	tasks := []ImportTask{
		{Title: "a", ColumnName: "Done"},
		{Title: "b", ColumnName: "done"},
		{Title: "c", ColumnName: "Review"},
		{Title: "d", ColumnName: " DONE "},
	}
	mapping := ColumnMapping{
		"Done":   NewColumn,
		"done":   NewColumn,
		"Review": NewColumn,
		" DONE ": NewColumn,
		"QA":     NewColumn,
		"qa":     NewColumn,
	}

	assert.Equal(t, []string{"Done", "Review", "QA"}, newColumnNames(tasks, mapping))
}

func TestNewColumnNames_SkipsMappedAndBlank(t *testing.T) {
	tasks := []ImportTask{{Title: "a", ColumnName: "Todo"}, {Title: "b", ColumnName: "New"}}
	mapping := ColumnMapping{"Todo": "c-todo", "New": NewColumn, "  ": NewColumn}

	assert.Equal(t, []string{"New"}, newColumnNames(tasks, mapping))
}

func TestApplyColumns_MapsEveryVariant(t *testing.T) {
	mapping := ColumnMapping{
		"Done":   NewColumn,
		"done":   NewColumn,
		" DONE ": NewColumn,
		"Todo":   "c-todo",
		"Orphan": NewColumn,
	}
	applyColumns(mapping, []board.Column{{ID: "c-done", Title: "Done"}})

	assert.Equal(t, ColumnMapping{
		"Done":   "c-done",
		"done":   "c-done",
		" DONE ": "c-done",
		"Todo":   "c-todo",
		"Orphan": NewColumn,
	}, mapping)
}

func TestImport_CaseVariantColumns(t *testing.T) {
	tasks := []ImportTask{
		{Title: "a", ColumnName: "Done"},
		{Title: "b", ColumnName: "done"},
		{Title: "c", ColumnName: " DONE "},
	}

	run := map[string]func(im *Importer, req ImportRequest) (int, error){
		"bulk": func(im *Importer, req ImportRequest) (int, error) {
			result, err := im.ExecuteBulkImport(context.Background(), req, nil)
			if len(result.Errors) > 0 {
				t.Errorf("unexpected batch errors: %v", result.Errors)
			}
			return result.Created, err
		},
		"sequential": func(im *Importer, req ImportRequest) (int, error) {
			result, err := im.InsertTasksSequentially(context.Background(), req, SequentialCallbacks{})
			assert.Equal(t, 1, result.ColumnsCreated)
			return result.Created, err
		},
	}

	for name, fn := range run {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			store.SeedColumns(board.Column{IdeaID: "idea-1", Title: "Todo"})
			req := bulkRequest(store, tasks)
			require.Len(t, req.ColumnMapping, 3)

			im := newTestImporter(store)
			created, err := fn(im, req)
			require.NoError(t, err)
			im.Wait()
			assert.Equal(t, 3, created)

			cols := store.Columns()
			require.Len(t, cols, 2)
			done := cols[1]
			assert.Equal(t, "Done", done.Title)
			assert.Len(t, tasksInColumn(store, done.ID), 3)
			for source, target := range req.ColumnMapping {
				assert.Equal(t, done.ID, target, source)
			}
		})
	}
}
