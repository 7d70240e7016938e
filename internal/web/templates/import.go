// Package templates renders the HTMX fragments returned by the import API.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/a-h/templ"
)

var esc = templ.EscapeString

// ErrorAlert renders a dismissible error box.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, esc(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, esc(action))
		}
		fmt.Fprintf(&b, `<p class="alert-code">Code: %s</p>`, esc(code))
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportPreview renders the parsed tasks and the column plan.
func ImportPreview(p *importer.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<section class="import-preview">`)
		fmt.Fprintf(&b, `<h3>%d tasks from %s</h3>`, p.TotalTasks, esc(string(p.Format)))
		if p.Truncated {
			b.WriteString(`<p class="warning">Only the first tasks up to the import limit will be created.</p>`)
		}
		if len(p.NewColumns) > 0 {
			fmt.Fprintf(&b, `<p>New columns: %s</p>`, esc(strings.Join(p.NewColumns, ", ")))
		}
		if len(p.NewLabels) > 0 {
			fmt.Fprintf(&b, `<p>New labels: %s</p>`, esc(strings.Join(p.NewLabels, ", ")))
		}
		b.WriteString(`<table><thead><tr><th>Title</th><th>Column</th><th>Assignee</th><th>Due</th><th>Labels</th></tr></thead><tbody>`)
		for _, t := range p.Tasks {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				esc(t.Title), esc(t.ColumnName), esc(t.AssigneeName), esc(t.DueDate), esc(strings.Join(t.Labels, ", ")))
		}
		b.WriteString(`</tbody></table></section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportResult renders the outcome of a finished run.
func ImportResult(r *importer.RunResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		status := "complete"
		switch {
		case r.Error != "":
			status = "failed"
		case r.Cancelled:
			status = "cancelled"
		}
		fmt.Fprintf(&b, `<section class="import-result import-%s" data-run-id="%s">`, status, esc(r.RunID))
		fmt.Fprintf(&b, `<h3>Imported %d of %d tasks</h3>`, r.Created, r.Total)
		if r.ColumnsCreated > 0 || r.LabelsCreated > 0 {
			fmt.Fprintf(&b, `<p>%d columns and %d labels created</p>`, r.ColumnsCreated, r.LabelsCreated)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, `<p class="error">%s</p>`, esc(importer.FormatUserError(fmt.Errorf("%s", r.Error))))
		}
		if r.Cancelled {
			b.WriteString(`<p class="warning">The import was cancelled before all tasks were created.</p>`)
		}
		if len(r.Errors) > 0 || len(r.Failed) > 0 {
			b.WriteString(`<ul class="import-errors">`)
			for _, e := range r.Errors {
				fmt.Fprintf(&b, `<li>%s</li>`, esc(e))
			}
			for _, f := range r.Failed {
				fmt.Fprintf(&b, `<li>Task %d (%s): %s</li>`, f.Index+1, esc(f.Title), esc(f.Error))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportProgress renders a progress bar for a running import.
func ImportProgress(p importer.RunProgress) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="import-progress" data-phase="%s"><progress max="100" value="%d"></progress><span>%s %d/%d</span></div>`,
			esc(string(p.Phase)), p.Percent(), esc(string(p.Phase)), p.Current, p.Total)
		return err
	})
}
