package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/board/memory"
)

// ============================================================================
// Parsing Benchmarks
// ============================================================================

// generateCSV builds an export with quoted multi-line descriptions, the
// slow path of the tokenizer.
func generateCSV(rows int) string {
	var sb strings.Builder
	sb.WriteString("Title,Description,Status,Labels,Due Date\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "Task %d,\"line one\nline \"\"two\"\"\",Todo,\"bug, ui\",01/15/2024\n", i)
	}
	return sb.String()
}

func BenchmarkParseCSV(b *testing.B) {
	for _, rows := range []int{50, 500} {
		data := generateCSV(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ParseCSV(data)
			}
		})
	}
}

// BenchmarkParseInputCSV covers tokenizing, header detection and row
// conversion together.
func BenchmarkParseInputCSV(b *testing.B) {
	data := []byte(generateCSV(500))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseInput(FormatCSV, data, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseDueDate(b *testing.B) {
	inputs := []string{
		"2024-01-15",
		"01/15/2024",
		"Jan 15, 2024",
		"2024-01-15T10:30:00Z",
		"1/5/24",
		"not a date",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, in := range inputs {
			ParseDueDate(in)
		}
	}
}

func BenchmarkParseBulkText(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "%d. task number %d\n- [ ] bullet %d\n\n", i+1, i, i)
	}
	text := sb.String()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseBulkText(text)
	}
}

// ============================================================================
// Insertion Benchmarks
// ============================================================================

func BenchmarkExecuteBulkImport(b *testing.B) {
	tasks := make([]ImportTask, 500)
	for i := range tasks {
		tasks[i] = ImportTask{
			Title:          fmt.Sprintf("task %d", i),
			ColumnName:     "Todo",
			Labels:         []string{"bug", "ui"},
			ChecklistItems: []string{"one", "two"},
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store := memory.New()
		cols := store.SeedColumns(board.Column{IdeaID: "idea-1", Title: "Todo"})
		im := New(store, Options{Logger: discardLogger()})

		_, err := im.ExecuteBulkImport(context.Background(), ImportRequest{
			Tasks:           tasks,
			IdeaID:          "idea-1",
			ActorID:         "actor-1",
			ExistingColumns: cols,
			ColumnMapping:   ColumnMapping{"Todo": cols[0].ID},
			DefaultColumnID: cols[0].ID,
		}, nil)
		if err != nil {
			b.Fatal(err)
		}
		im.Wait()
	}
}
