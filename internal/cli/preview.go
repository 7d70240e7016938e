package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// inputOptions are the flags shared by preview and import.
type inputOptions struct {
	ideaID  string
	format  string
	mapping string
}

func (o *inputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ideaID, "idea", "", "board (idea) id to import into")
	cmd.Flags().StringVar(&o.format, "format", "", "input format: csv, json, trello, custom, text (default from file extension)")
	cmd.Flags().StringVar(&o.mapping, "mapping", "", "YAML file with csv header, column and default column mappings")
	_ = cmd.MarkFlagRequired("idea")
}

func (o *inputOptions) resolveFormat(path string) (importer.Format, error) {
	if o.format == "" {
		return importer.FormatFromFilename(path), nil
	}
	f := importer.Format(o.format)
	switch f {
	case importer.FormatCSV, importer.FormatJSON, importer.FormatTrello, importer.FormatCustom, importer.FormatText:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", importer.ErrUnknownFormat, o.format)
}

func newPreviewCommand(global *globalOptions) *cobra.Command {
	var in inputOptions

	cmd := &cobra.Command{
		Use:   "preview <file|->",
		Short: "Show what an import would create without writing anything",
		Example: `  boardimport preview --idea 7c1e... tasks.csv
  boardimport preview --idea 7c1e... --format trello board.json -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			format, err := in.resolveFormat(args[0])
			if err != nil {
				return err
			}
			mapping, err := loadMapping(in.mapping)
			if err != nil {
				return err
			}

			s, err := global.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := readInput(cmd, args[0], s.cfg.Import.MaxFileSize)
			if err != nil {
				return err
			}
			csvMapping, err := mapping.csvMapping(data)
			if err != nil {
				return err
			}

			service := importer.NewService(s.handle.Store, s.serviceConfig())
			preview, err := service.Preview(ctx, in.ideaID, format, data, csvMapping)
			if err != nil {
				return fmt.Errorf("preview: %s", importer.FormatUserError(err))
			}
			for name, target := range mapping.Columns {
				preview.ColumnMapping[name] = target
			}

			out := cmd.OutOrStdout()
			if ok, err := structured(out, global.output, preview); ok {
				return err
			}
			renderPreview(out, preview, s.cfg.Import.MaxTasks)
			return nil
		},
	}

	in.register(cmd)
	return cmd
}

func renderPreview(w io.Writer, p *importer.Preview, maxTasks int) {
	shown := p.TotalTasks
	if p.Truncated {
		shown = maxTasks
	}
	summaryTable(w, "Preview",
		"Format", string(p.Format),
		"Tasks", strconv.Itoa(p.TotalTasks),
		"Will import", strconv.Itoa(shown),
		"New columns", joinOrDash(p.NewColumns),
		"New labels", joinOrDash(p.NewLabels),
	)

	if len(p.Headers) > 0 {
		tw := newTable(w, "CSV columns", table.Row{"#", "Header", "Field"})
		for i, h := range p.Headers {
			field := p.CSVMapping[i]
			if field == "" {
				field = importer.FieldSkip
			}
			tw.AppendRow(table.Row{i, h, field})
		}
		tw.Render()
	}

	if len(p.ColumnMapping) > 0 {
		titles := make(map[string]string, len(p.Columns))
		for _, c := range p.Columns {
			titles[c.ID] = c.Title
		}
		tw := newTable(w, "Columns", table.Row{"Source", "Target"})
		for _, name := range sortedKeys(p.ColumnMapping) {
			target := p.ColumnMapping[name]
			switch {
			case target == importer.NewColumn:
				target = "(new column)"
			case titles[target] != "":
				target = titles[target]
			}
			tw.AppendRow(table.Row{name, target})
		}
		tw.Render()
	}

	tw := newTable(w, "Tasks", table.Row{"#", "Title", "Column", "Assignee", "Due", "Labels", "Checklist"})
	for i, t := range p.Tasks {
		if i == shown {
			break
		}
		tw.AppendRow(table.Row{
			i + 1,
			truncate(t.Title, 48),
			orDash(t.ColumnName),
			orDash(t.AssigneeName),
			orDash(t.DueDate),
			joinOrDash(t.Labels),
			len(t.ChecklistItems),
		})
	}
	if p.Truncated {
		tw.AppendFooter(table.Row{"", fmt.Sprintf("%d more skipped", p.TotalTasks-shown)})
	}
	tw.Render()
}
