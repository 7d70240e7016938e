package importer

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/sethvargo/go-retry"
)

// upsertByName writes one row per name and makes the write safe to retry.
//
// The first attempt inserts every name. If it fails, upsertByName waits
// delay, looks up rows that already exist under the intended names (left
// behind by the failed attempt or an earlier run) and inserts only the
// names still missing. The returned rows cover every name that now exists.
//
// created counts the rows this call wrote. Rows found during reconciliation
// count only when the failed attempt may have written them; a failure with
// board.ErrDuplicate wrote nothing, so those rows predate the call.
func upsertByName[T any](
	ctx context.Context,
	delay time.Duration,
	names []string,
	nameOf func(T) string,
	insert func(ctx context.Context, names []string) ([]T, error),
	find func(ctx context.Context, names []string) ([]T, error),
) (rows []T, created int, err error) {
	if len(names) == 0 {
		return nil, 0, nil
	}

	var (
		attempt      int
		maybeWritten bool
	)

	err = retry.Do(ctx, retry.WithMaxRetries(1, constantBackoff(delay)), func(ctx context.Context) error {
		attempt++
		pending := names

		if attempt > 1 {
			found, err := find(ctx, names)
			if err != nil {
				return retry.RetryableError(err)
			}
			rows = matchingRows(found, names, nameOf)
			created = 0
			if maybeWritten {
				created = len(rows)
			}
			pending = remainingNames(names, rows, nameOf)
			if len(pending) == 0 {
				return nil
			}
		}

		inserted, err := insert(ctx, pending)
		if err != nil {
			if !errors.Is(err, board.ErrDuplicate) {
				maybeWritten = true
			}
			return retry.RetryableError(err)
		}
		rows = append(rows, inserted...)
		created += len(inserted)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return rows, created, nil
}

// matchingRows keeps the first row found for each intended name.
func matchingRows[T any](found []T, names []string, nameOf func(T) string) []T {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[board.NormalizeName(n)] = true
	}

	var out []T
	for _, row := range found {
		key := board.NormalizeName(nameOf(row))
		if want[key] {
			out = append(out, row)
			delete(want, key)
		}
	}
	return out
}

// remainingNames returns the names with no row yet.
func remainingNames[T any](names []string, rows []T, nameOf func(T) string) []string {
	have := make(map[string]bool, len(rows))
	for _, row := range rows {
		have[board.NormalizeName(nameOf(row))] = true
	}

	var out []string
	for _, n := range names {
		if !have[board.NormalizeName(n)] {
			out = append(out, n)
		}
	}
	return out
}

// constantBackoff waits d between attempts. go-retry rejects a zero delay,
// so anything shorter than a millisecond is raised to one.
func constantBackoff(d time.Duration) retry.Backoff {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return retry.NewConstant(d)
}
