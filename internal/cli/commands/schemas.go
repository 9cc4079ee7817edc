package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/docdesk/internal/cli/config"
	"github.com/leapstack-labs/docdesk/internal/schema"
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cobra"
)

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "Validate and list resource schemas",
		Long: `Load every schema in the schemas directory, compile its cell and on_change
scripts, and print a summary. Exits non-zero if any schema is invalid.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemas(cmd)
		},
	}
}

type schemaSummary struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Endpoint  string `json:"endpoint"`
	Columns   int    `json:"columns"`
	Fields    int    `json:"fields"`
	Singleton bool   `json:"singleton"`
	Batch     bool   `json:"batch"`
}

func runSchemas(cmd *cobra.Command) error {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	resources, loadErr := schema.LoadDir(cfg.SchemasDir)
	engine := script.NewEngine(script.WithLogger(logger))

	var result *multierror.Error
	if loadErr != nil {
		result = multierror.Append(result, loadErr)
	}
	summaries := make([]schemaSummary, 0, len(resources))
	for _, res := range resources {
		if err := engine.Check(res); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", res.Name, err))
			continue
		}
		summaries = append(summaries, summarize(res))
	}

	w := cmd.OutOrStdout()
	if effectiveOutput(cfg.Output, w) == config.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return err
		}
	} else {
		renderSchemas(w, summaries, effectiveOutput(cfg.Output, w) == config.OutputMarkdown)
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Join(errors.New("invalid schemas"), err)
	}
	return nil
}

func summarize(res *core.Resource) schemaSummary {
	return schemaSummary{
		Name:      res.Name,
		Label:     res.Label,
		Endpoint:  res.Endpoint,
		Columns:   len(res.Columns),
		Fields:    len(res.Fields),
		Singleton: res.Singleton,
		Batch:     res.Batch != nil,
	}
}

func renderSchemas(w io.Writer, summaries []schemaSummary, markdown bool) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "No valid schemas found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Label", "Endpoint", "Columns", "Fields", "Kind"})
	for _, s := range summaries {
		kind := "list"
		switch {
		case s.Singleton:
			kind = "singleton"
		case s.Batch:
			kind = "list+batch"
		}
		t.AppendRow(table.Row{s.Name, s.Label, s.Endpoint, s.Columns, s.Fields, kind})
	}
	if markdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
}
