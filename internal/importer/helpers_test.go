package importer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board/memory"
)

var errStorage = errors.New("storage unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{RetryDelay: time.Millisecond, Logger: discardLogger()}
}

func newTestImporter(store Store) *Importer {
	return New(store, testOptions())
}

// numberedTasks returns n tasks titled "task 1" .. "task n" in column.
func numberedTasks(n int, column string) []ImportTask {
	tasks := make([]ImportTask, n)
	for i := range tasks {
		tasks[i] = ImportTask{Title: fmt.Sprintf("task %d", i+1), ColumnName: column}
	}
	return tasks
}

// failCalls fails the listed calls (1-based) of op without writing.
func failCalls(op memory.Op, calls ...int) memory.Fault {
	return func(got memory.Op, call int) (bool, error) {
		if got != op {
			return false, nil
		}
		for _, c := range calls {
			if c == call {
				return false, errStorage
			}
		}
		return false, nil
	}
}

// lostAck writes the first call of op but reports it as failed.
func lostAck(op memory.Op) memory.Fault {
	return func(got memory.Op, call int) (bool, error) {
		if got == op && call == 1 {
			return true, errStorage
		}
		return false, nil
	}
}

func combineFaults(faults ...memory.Fault) memory.Fault {
	return func(op memory.Op, call int) (bool, error) {
		for _, f := range faults {
			if commit, err := f(op, call); err != nil {
				return commit, err
			}
		}
		return false, nil
	}
}
