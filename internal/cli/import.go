package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/board/memory"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type importOptions struct {
	inputOptions
	actorID       string
	mode          string
	defaultColumn string
	dryRun        bool
	quiet         bool
}

func newImportCommand(global *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import tasks into a board",
		Long: `Import tasks into a board.

Bulk mode (the default) writes columns, labels and tasks in batches and
cannot be interrupted. Sequential mode writes one task at a time, retries
failures and stops cleanly on Ctrl-C; tasks already written stay.

With --dry-run the import runs against an in-memory copy of the board and
nothing is written.`,
		Example: `  boardimport import --idea 7c1e... --actor 51b0... tasks.csv
  boardimport import --idea 7c1e... --actor 51b0... --mode sequential --mapping map.yaml export.csv
  cat todo.txt | boardimport import --idea 7c1e... --actor 51b0... --format text -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, global, &opts, args[0])
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.actorID, "actor", "", "user id recorded as creator of the imported tasks")
	cmd.Flags().StringVar(&opts.mode, "mode", string(importer.ModeBulk), "insertion mode: bulk or sequential")
	cmd.Flags().StringVar(&opts.defaultColumn, "default-column", "", "column id for tasks without a column (default: first column)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "run against an in-memory copy of the board")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func runImport(cmd *cobra.Command, global *globalOptions, opts *importOptions, path string) error {
	ctx := cmd.Context()

	mode := importer.Mode(opts.mode)
	if mode != importer.ModeBulk && mode != importer.ModeSequential {
		return fmt.Errorf("unknown mode %q (want bulk or sequential)", opts.mode)
	}
	format, err := opts.resolveFormat(path)
	if err != nil {
		return err
	}
	mapping, err := loadMapping(opts.mapping)
	if err != nil {
		return err
	}

	s, err := global.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := readInput(cmd, path, s.cfg.Import.MaxFileSize)
	if err != nil {
		return err
	}
	csvMapping, err := mapping.csvMapping(data)
	if err != nil {
		return err
	}

	var target importer.Backend = s.handle.Store
	if opts.dryRun {
		target, err = boardCopy(ctx, s.handle.Store, opts.ideaID)
		if err != nil {
			return err
		}
	}

	defaultColumn := opts.defaultColumn
	if defaultColumn == "" {
		defaultColumn = mapping.DefaultColumn
	}

	service := importer.NewService(target, s.serviceConfig())
	runID, err := service.StartImport(ctx, importer.StartRequest{
		IdeaID:          opts.ideaID,
		ActorID:         opts.actorID,
		Mode:            mode,
		Format:          format,
		Data:            data,
		CSVMapping:      csvMapping,
		ColumnMapping:   mapping.Columns,
		DefaultColumnID: defaultColumn,
	})
	if err != nil {
		return fmt.Errorf("import: %s", importer.FormatUserError(err))
	}

	progress := io.Discard
	if !opts.quiet && global.output == outputTable {
		progress = cmd.ErrOrStderr()
	}
	result, err := follow(ctx, service, runID, progress)
	if err != nil {
		return err
	}
	if err := service.WaitForImports(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("activity writes did not finish", "error", err)
	}

	out := cmd.OutOrStdout()
	if ok, err := structured(out, global.output, result); ok {
		if err != nil {
			return err
		}
	} else {
		renderResult(out, result, opts.dryRun)
	}

	if result.Error != "" {
		return fmt.Errorf("import failed: %s", result.Error)
	}
	return nil
}

// follow prints progress until the run finishes. Cancelling ctx asks a
// sequential run to stop; a bulk run is left to finish.
func follow(ctx context.Context, service *importer.Service, runID string, w io.Writer) (*importer.RunResult, error) {
	updates, err := service.SubscribeProgress(runID)
	if err != nil {
		return nil, err
	}

	var last importer.RunProgress
	done := ctx.Done()
	for updates != nil {
		select {
		case p, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if p.Phase != last.Phase || p.Current != last.Current {
				printProgress(w, p)
				last = p
			}
		case <-done:
			done = nil
			if err := service.CancelImport(runID); errors.Is(err, importer.ErrNotCancellable) {
				fmt.Fprintln(w, "bulk imports cannot be interrupted; waiting for it to finish")
			} else if err == nil {
				fmt.Fprintln(w, "cancelling after the current task")
			}
		}
	}

	return service.GetImportResult(context.WithoutCancel(ctx), runID)
}

func printProgress(w io.Writer, p importer.RunProgress) {
	if p.Phase == importer.PhaseTasks && p.Total > 0 {
		fmt.Fprintf(w, "%-10s %3d%%  %d/%d\n", p.Phase, p.Percent(), p.Current, p.Total)
		return
	}
	fmt.Fprintf(w, "%s\n", p.Phase)
}

func renderResult(w io.Writer, r *importer.RunResult, dryRun bool) {
	title := "Import"
	if dryRun {
		title = "Import (dry run, nothing written)"
	}

	status := "complete"
	switch {
	case r.Error != "":
		status = "failed"
	case r.Cancelled:
		status = "cancelled"
	}

	pairs := []any{
		"Run", r.RunID,
		"Mode", string(r.Mode),
		"Status", status,
		"Created", fmt.Sprintf("%d of %s", r.Created, plural(r.Total, "task")),
	}
	if r.Mode == importer.ModeSequential {
		pairs = append(pairs,
			"Columns created", strconv.Itoa(r.ColumnsCreated),
			"Labels created", strconv.Itoa(r.LabelsCreated),
		)
	}
	pairs = append(pairs, "Duration", r.Duration.Round(time.Millisecond).String())
	summaryTable(w, title, pairs...)

	if len(r.Errors) > 0 {
		tw := newTable(w, "Errors", table.Row{"#", "Error"})
		for i, e := range r.Errors {
			tw.AppendRow(table.Row{i + 1, e})
		}
		tw.Render()
	}
	if len(r.Failed) > 0 {
		tw := newTable(w, "Failed tasks", table.Row{"#", "Title", "Error"})
		for _, f := range r.Failed {
			tw.AppendRow(table.Row{f.Index + 1, truncate(f.Title, 40), f.Error})
		}
		tw.Render()
	}
}

// boardCopy loads a board into a memory store so a dry run sees the same
// columns, labels, members and column tail positions.
func boardCopy(ctx context.Context, src importer.Backend, ideaID string) (*memory.Store, error) {
	columns, err := src.ListColumns(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	labels, err := src.ListLabels(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	members, err := src.ListTeamMembers(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}

	ids := make([]string, len(columns))
	for i, c := range columns {
		ids[i] = c.ID
	}
	tails, err := src.MaxTaskPositions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read task positions: %w", err)
	}

	dst := memory.New()
	dst.SeedColumns(columns...)
	dst.SeedLabels(labels...)
	dst.SeedMembers(ideaID, members...)
	for _, id := range ids {
		if pos, ok := tails[id]; ok {
			dst.SeedTasks(board.Task{IdeaID: ideaID, ColumnID: id, Title: "existing", Position: pos})
		}
	}
	return dst, nil
}
