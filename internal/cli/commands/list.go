package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/docdesk/internal/cli/config"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cobra"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Page    int
	PerPage int
	Search  string
	Filters map[string]string
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Print one page of a resource list",
		Long: `Fetch one page of a resource from the backend and print it with the
columns of its schema.

Output adapts to environment:
  - Terminal: table
  - Piped/Scripted: Markdown table (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # First page of invoices
  docdesk list invoices

  # Search and filter
  docdesk list invoices --search acme --filter invoice_date_from=2024-01-01

  # Raw page as JSON
  docdesk list invoices --output json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: resourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 0, "Rows per page (default: the schema's per_page)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Free-text search")
	cmd.Flags().StringToStringVar(&opts.Filters, "filter", nil, "Column filter key=value (repeatable)")

	return cmd
}

func runList(cmd *cobra.Command, name string, opts *ListOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	res, err := cmdCtx.Resource(name)
	if err != nil {
		return err
	}
	c, err := cmdCtx.Client()
	if err != nil {
		return err
	}

	q := core.Query{
		Page:    opts.Page,
		PerPage: opts.PerPage,
		Search:  opts.Search,
		Filters: parseFilters(opts.Filters),
	}.Normalize(res.PerPage)

	result, err := c.List(cmd.Context(), res, q)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", res.Name, err)
	}

	w := cmd.OutOrStdout()
	switch effectiveOutput(cmdCtx.Cfg.Output, w) {
	case config.OutputJSON:
		return listJSON(w, q, result)
	case config.OutputMarkdown:
		return listTable(w, res, q, result, script.NewEngine(script.WithLogger(cmdCtx.Logger)), true)
	default:
		return listTable(w, res, q, result, script.NewEngine(script.WithLogger(cmdCtx.Logger)), false)
	}
}

func listTable(w io.Writer, res *core.Resource, q core.Query, result core.Result, engine *script.Engine, markdown bool) error {
	if len(result.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "No records found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{res.IDKey}
	for _, c := range res.Columns {
		header = append(header, c.Header)
	}
	t.AppendHeader(header)

	for _, rec := range result.Rows {
		row := table.Row{res.RecordID(rec)}
		for _, c := range res.Columns {
			cell, err := engine.Cell(c, rec)
			if err != nil {
				cell = "!"
			}
			row = append(row, cell)
		}
		t.AppendRow(row)
	}

	if markdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	_, _ = fmt.Fprintf(w, "(page %d of %d, %d total)\n", q.Page, max(core.LastPageFor(result.Total, q.PerPage), 1), result.Total)
	return nil
}

func listJSON(w io.Writer, q core.Query, result core.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"page":     q.Page,
		"per_page": q.PerPage,
		"total":    result.Total,
		"rows":     result.Rows,
	})
}
