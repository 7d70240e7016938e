package importer

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/board/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceCSV = "Title,Status,Tags\nA,Todo,x\nB,Review,\"y, X\"\nC,,\n"

func newTestService(store Backend, mutate func(*ServiceConfig)) *Service {
	cfg := ServiceConfig{Importer: testOptions()}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewService(store, cfg)
}

func seededBoard() (*memory.Store, board.Column) {
	store := memory.New()
	cols := store.SeedColumns(board.Column{IdeaID: "idea-1", Title: "Todo", Position: 0})
	store.SeedLabels(board.Label{IdeaID: "idea-1", Name: "x", Color: LabelPalette[0]})
	return store, cols[0]
}

func waitResult(t *testing.T, s *Service, runID string) *RunResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.GetImportResult(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestService_Preview(t *testing.T) {
	store, todo := seededBoard()
	s := newTestService(store, nil)

	p, err := s.Preview(context.Background(), "idea-1", FormatCSV, []byte(serviceCSV), nil)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, p.Format)
	assert.Equal(t, []string{"Title", "Status", "Tags"}, p.Headers)
	assert.Equal(t, 3, p.TotalTasks)
	assert.False(t, p.Truncated)
	assert.Equal(t, todo.ID, p.ColumnMapping["Todo"])
	assert.Equal(t, NewColumn, p.ColumnMapping["Review"])
	assert.Equal(t, []string{"Review"}, p.NewColumns)
	assert.Equal(t, []string{"y"}, p.NewLabels)
	assert.Len(t, p.Columns, 1)

	assert.Empty(t, store.Tasks(), "preview writes nothing")
	assert.Len(t, store.Columns(), 1)
}

func TestService_PreviewTruncated(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, func(c *ServiceConfig) { c.Importer.MaxTasks = 2 })

	p, err := s.Preview(context.Background(), "idea-1", FormatCSV, []byte(serviceCSV), nil)
	require.NoError(t, err)
	assert.True(t, p.Truncated)
	assert.Equal(t, 3, p.TotalTasks)
	assert.Len(t, p.Tasks, 3)
}

func TestService_PreviewUnknownFormat(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, nil)

	_, err := s.Preview(context.Background(), "idea-1", Format("xlsx"), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestService_Prepare(t *testing.T) {
	ctx := context.Background()

	t.Run("no default column", func(t *testing.T) {
		s := newTestService(memory.New(), nil)
		_, err := s.Prepare(ctx, StartRequest{IdeaID: "idea-1", Format: FormatText, Data: []byte("one\n")})
		assert.ErrorIs(t, err, ErrNoDefaultColumn)
	})

	t.Run("new columns need no default", func(t *testing.T) {
		s := newTestService(memory.New(), nil)
		req, err := s.Prepare(ctx, StartRequest{IdeaID: "idea-1", Format: FormatCSV, Data: []byte("Title,Column\na,Later\n")})
		require.NoError(t, err)
		assert.Empty(t, req.DefaultColumnID)
		assert.Equal(t, NewColumn, req.ColumnMapping["Later"])
	})

	t.Run("first column by position", func(t *testing.T) {
		store := memory.New()
		cols := store.SeedColumns(
			board.Column{IdeaID: "idea-1", Title: "Later", Position: 2000},
			board.Column{IdeaID: "idea-1", Title: "Now", Position: 1000},
		)
		s := newTestService(store, nil)

		req, err := s.Prepare(ctx, StartRequest{IdeaID: "idea-1", ActorID: "u1", Format: FormatText, Data: []byte("one\n")})
		require.NoError(t, err)
		assert.Equal(t, cols[1].ID, req.DefaultColumnID)
		assert.Equal(t, "u1", req.ActorID)
		require.Len(t, req.Tasks, 1)
	})

	t.Run("explicit mapping wins", func(t *testing.T) {
		store := memory.New()
		cols := store.SeedColumns(
			board.Column{IdeaID: "idea-1", Title: "Todo"},
			board.Column{IdeaID: "idea-1", Title: "Backlog", Position: 1000},
		)
		s := newTestService(store, nil)

		req, err := s.Prepare(ctx, StartRequest{
			IdeaID:          "idea-1",
			Format:          FormatCSV,
			Data:            []byte("Title,Column\na,Todo\nb,Review\n"),
			ColumnMapping:   ColumnMapping{"Todo": cols[1].ID},
			DefaultColumnID: cols[1].ID,
		})
		require.NoError(t, err)
		assert.Equal(t, cols[1].ID, req.ColumnMapping["Todo"])
		assert.Equal(t, NewColumn, req.ColumnMapping["Review"])
		assert.Equal(t, cols[1].ID, req.DefaultColumnID)
	})
}

func TestService_StartImportBulk(t *testing.T) {
	store, todo := seededBoard()
	s := newTestService(store, nil)

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID:  "idea-1",
		ActorID: "u1",
		Format:  FormatCSV,
		Data:    []byte(serviceCSV),
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	result := waitResult(t, s, runID)
	assert.Equal(t, runID, result.RunID)
	assert.Equal(t, ModeBulk, result.Mode, "bulk is the default")
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Created)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Error)

	require.NoError(t, s.WaitForImports(context.Background()))
	assert.Len(t, store.Tasks(), 3)
	assert.Len(t, store.Columns(), 2)
	assert.Len(t, store.Labels(), 2)
	assert.Len(t, tasksInColumn(store, todo.ID), 2, "A and the column-less C")
	assert.Len(t, store.Activity(), 3)

	p, err := s.GetImportProgress(runID)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, p.Phase)
	assert.Equal(t, 3, p.Created)
	assert.Equal(t, 100, p.Percent())
}

func TestService_StartImportSequential(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, nil)

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID:  "idea-1",
		ActorID: "u1",
		Mode:    ModeSequential,
		Format:  FormatCSV,
		Data:    []byte(serviceCSV),
	})
	require.NoError(t, err)

	result := waitResult(t, s, runID)
	assert.Equal(t, ModeSequential, result.Mode)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.ColumnsCreated)
	assert.Equal(t, 1, result.LabelsCreated)
	assert.False(t, result.Cancelled)
	assert.Empty(t, result.Failed)
}

func TestService_StartImportFailure(t *testing.T) {
	store, _ := seededBoard()
	store.SetFault(memory.FailN(memory.OpInsertColumns, 10, errStorage))
	s := newTestService(store, nil)

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Format: FormatCSV,
		Data:   []byte(serviceCSV),
	})
	require.NoError(t, err)

	result := waitResult(t, s, runID)
	assert.Contains(t, result.Error, "storage unavailable")
	assert.Equal(t, 0, result.Created)

	p, err := s.GetImportProgress(runID)
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, p.Phase)
	assert.Equal(t, result.Error, p.Error)
}

func TestService_StartImportPrepareErrors(t *testing.T) {
	s := newTestService(memory.New(), nil)

	_, err := s.StartImport(context.Background(), StartRequest{IdeaID: "idea-1", Format: FormatText, Data: []byte("one\n")})
	assert.ErrorIs(t, err, ErrNoDefaultColumn)
	assert.Equal(t, 0, s.LimiterStatus().Active, "no slot taken")
}

func TestService_SubscribeProgress(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, func(c *ServiceConfig) { c.Importer.Throttle = 20 * time.Millisecond })

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Mode:   ModeSequential,
		Format: FormatText,
		Data:   []byte("one\ntwo\nthree\n"),
	})
	require.NoError(t, err)

	updates, err := s.SubscribeProgress(runID)
	require.NoError(t, err)

	var seen []RunProgress
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-updates:
			if !ok {
				done = true
				continue
			}
			assert.Equal(t, runID, p.RunID)
			seen = append(seen, p)
		case <-timeout:
			t.Fatal("progress channel was not closed")
		}
	}
	assert.NotEmpty(t, seen)

	// Subscribing after the run finished yields the final state and a
	// closed channel.
	late, err := s.SubscribeProgress(runID)
	require.NoError(t, err)
	p, ok := <-late
	require.True(t, ok)
	assert.Equal(t, PhaseComplete, p.Phase)
	assert.Equal(t, 3, p.Created)
	_, ok = <-late
	assert.False(t, ok)
}

func TestService_CancelSequential(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, func(c *ServiceConfig) { c.Importer.Throttle = time.Second })

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Mode:   ModeSequential,
		Format: FormatText,
		Data:   []byte("one\ntwo\nthree\nfour\nfive\n"),
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		p, err := s.GetImportProgress(runID)
		return err == nil && p.Created >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.CancelImport(runID))

	result := waitResult(t, s, runID)
	assert.True(t, result.Cancelled)
	assert.Less(t, result.Created, 5)
	assert.Empty(t, result.Error)

	p, err := s.GetImportProgress(runID)
	require.NoError(t, err)
	assert.Equal(t, PhaseCancelled, p.Phase)

	require.NoError(t, s.WaitForImports(context.Background()))
	assert.Len(t, store.Tasks(), result.Created)
}

func TestService_CancelBulk(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, nil)

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Format: FormatText,
		Data:   []byte("one\n"),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.CancelImport(runID), ErrNotCancellable)
	result := waitResult(t, s, runID)
	assert.Equal(t, 1, result.Created)
}

func TestService_UnknownRun(t *testing.T) {
	s := newTestService(memory.New(), nil)

	_, err := s.GetImportProgress("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.SubscribeProgress("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.CancelImport("nope"), ErrRunNotFound)
	_, err = s.GetImportResult(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestService_TooManyImports(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, func(c *ServiceConfig) {
		c.MaxConcurrent = 1
		c.MaxWait = 50 * time.Millisecond
		c.Importer.Throttle = time.Second
	})

	first, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Mode:   ModeSequential,
		Format: FormatText,
		Data:   []byte("one\ntwo\nthree\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, LimiterStatus{Active: 1, Available: 0, MaxConcurrent: 1}, s.LimiterStatus())

	_, err = s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Format: FormatText,
		Data:   []byte("four\n"),
	})
	assert.ErrorIs(t, err, ErrTooManyImports)

	require.NoError(t, s.CancelImport(first))
	waitResult(t, s, first)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitForImports(ctx))
	assert.Equal(t, 0, s.LimiterStatus().Active)
}

func TestService_WaitForImportsTimeout(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, func(c *ServiceConfig) { c.Importer.Throttle = time.Second })

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Mode:   ModeSequential,
		Format: FormatText,
		Data:   []byte("one\ntwo\n"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitForImports(ctx), context.DeadlineExceeded)

	require.NoError(t, s.CancelImport(runID))
	waitResult(t, s, runID)
}

func TestService_ResultRetention(t *testing.T) {
	store, _ := seededBoard()
	s := newTestService(store, func(c *ServiceConfig) { c.ResultRetention = 50 * time.Millisecond })

	runID, err := s.StartImport(context.Background(), StartRequest{
		IdeaID: "idea-1",
		Format: FormatText,
		Data:   []byte("one\n"),
	})
	require.NoError(t, err)
	waitResult(t, s, runID)

	assert.Eventually(t, func() bool {
		_, err := s.GetImportProgress(runID)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = s.GetImportResult(context.Background(), runID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
