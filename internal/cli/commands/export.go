package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/leapstack-labs/docdesk/internal/export"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cobra"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Format  string
	Out     string
	Search  string
	Filters map[string]string
	All     bool
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export <resource>",
		Short: "Export a resource list to xlsx or csv",
		Long: `Export the rows of a resource list, rendered with the columns of its schema.
Without --all only the first page is exported.`,
		Example: `  # Every invoice as a spreadsheet
  docdesk export invoices --all --out invoices.xlsx

  # Filtered page as CSV on stdout
  docdesk export invoices --format csv --search acme`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: resourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "xlsx", "Output format: xlsx, csv")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Output file (default: <resource>.<format>, '-' for stdout)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Free-text search")
	cmd.Flags().StringToStringVar(&opts.Filters, "filter", nil, "Column filter key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Export every page")

	return cmd
}

func runExport(cmd *cobra.Command, name string, opts *ExportOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	res, err := cmdCtx.Resource(name)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	c, err := cmdCtx.Client()
	if err != nil {
		return err
	}

	q := core.Query{
		Page:    1,
		Search:  opts.Search,
		Filters: parseFilters(opts.Filters),
	}.Normalize(res.PerPage)

	var rows []core.Record
	for {
		result, err := c.List(cmd.Context(), res, q)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", res.Name, err)
		}
		rows = append(rows, result.Rows...)
		if !opts.All || len(result.Rows) == 0 || q.Page >= core.LastPageFor(result.Total, q.PerPage) {
			break
		}
		q.Page++
	}

	engine := script.NewEngine(script.WithLogger(cmdCtx.Logger))
	t, err := export.Build(res.Columns, rows, engine.Cell)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == "" {
		out = format.Filename(res.Name)
	}
	var w io.Writer = cmd.OutOrStdout()
	if out != "-" {
		f, err := os.Create(out) //nolint:gosec
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := export.Write(w, format, res.Label, t); err != nil {
		return err
	}
	if out != "-" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", len(rows), out)
	}
	return nil
}
