package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/docdesk/internal/cli/config"
	"github.com/leapstack-labs/docdesk/internal/cli/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCommandShapes(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewServeCommand(), "serve", []string{"port", "no-browser", "watch", "dev-backend", "dev"}},
		{NewDevBackendCommand(), "devbackend", []string{"port", "database", "seed"}},
		{NewSeedCommand(), "seed [resource...]", []string{"count", "database"}},
		{NewListCommand(), "list <resource>", []string{"page", "per-page", "search", "filter"}},
		{NewExportCommand(), "export <resource>", []string{"format", "out", "search", "filter", "all"}},
		{NewBrowseCommand(), "browse <resource>", nil},
		{NewSchemasCommand(), "schemas", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func run(t *testing.T, cmd *cobra.Command, project, apiURL, output string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testutil.Context(t, project, apiURL, output))
	return out.String(), errOut.String(), err
}

func TestListCommand(t *testing.T) {
	project := testutil.SetupTestProject(t)
	api := testutil.StartBackend(t, project, 15)

	t.Run("markdown", func(t *testing.T) {
		out, _, err := run(t, NewListCommand(), project, api, config.OutputMarkdown, "customers")
		require.NoError(t, err)
		testutil.AssertNoANSI(t, out)
		testutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "| Name")
		assert.Contains(t, out, "Name 015", "newest first")
		assert.NotContains(t, out, "Name 005")
		assert.Contains(t, out, "(page 1 of 2, 15 total)")
	})

	t.Run("second page", func(t *testing.T) {
		out, _, err := run(t, NewListCommand(), project, api, config.OutputMarkdown, "customers", "--page", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "Name 005")
		assert.Contains(t, out, "(page 2 of 2, 15 total)")
	})

	t.Run("search", func(t *testing.T) {
		out, _, err := run(t, NewListCommand(), project, api, config.OutputMarkdown, "customers", "--search", "name 003")
		require.NoError(t, err)
		assert.Contains(t, out, "(page 1 of 1, 1 total)")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, NewListCommand(), project, api, config.OutputJSON, "customers", "--per-page", "5")
		require.NoError(t, err)
		var page struct {
			Page    int              `json:"page"`
			PerPage int              `json:"per_page"`
			Total   int              `json:"total"`
			Rows    []map[string]any `json:"rows"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &page))
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 5, page.PerPage)
		assert.Equal(t, 15, page.Total)
		assert.Len(t, page.Rows, 5)
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, _, err := run(t, NewListCommand(), project, api, config.OutputMarkdown, "orders")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "available: customers, invoices")
	})
}

func TestListCommandEmpty(t *testing.T) {
	project := testutil.SetupTestProject(t)
	api := testutil.StartBackend(t, project, 0)

	out, _, err := run(t, NewListCommand(), project, api, config.OutputMarkdown, "customers")
	require.NoError(t, err)
	assert.Equal(t, "No records found.\n", out)
}

func TestExportCommand(t *testing.T) {
	project := testutil.SetupTestProject(t)
	api := testutil.StartBackend(t, project, 15)

	t.Run("csv every page", func(t *testing.T) {
		out, _, err := run(t, NewExportCommand(), project, api, config.OutputMarkdown,
			"customers", "--format", "csv", "--out", "-", "--all")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 16)
		assert.Equal(t, "Name,Email", strings.TrimSpace(lines[0]))
	})

	t.Run("csv first page", func(t *testing.T) {
		out, _, err := run(t, NewExportCommand(), project, api, config.OutputMarkdown,
			"customers", "--format", "csv", "--out", "-")
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 11)
	})

	t.Run("xlsx", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invoices.xlsx")
		_, errOut, err := run(t, NewExportCommand(), project, api, config.OutputMarkdown,
			"invoices", "--out", path, "--all")
		require.NoError(t, err)
		assert.Contains(t, errOut, "Wrote 15 rows")

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		rows, err := f.GetRows("Invoices")
		require.NoError(t, err)
		require.Len(t, rows, 16)
		assert.Equal(t, []string{"Invoice No", "Amount"}, rows[0])
	})

	t.Run("bad format", func(t *testing.T) {
		_, _, err := run(t, NewExportCommand(), project, api, config.OutputMarkdown, "customers", "--format", "pdf")
		assert.Error(t, err)
	})
}

func TestSchemasCommand(t *testing.T) {
	project := testutil.SetupTestProject(t)

	out, _, err := run(t, NewSchemasCommand(), project, "http://localhost/api", config.OutputMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "invoices")

	testutil.WriteSchema(t, project, "broken.yaml", "label: Broken\ncolumns:\n  - header: X\n    render: \"row.get(\"\n")
	out, _, err = run(t, NewSchemasCommand(), project, "http://localhost/api", config.OutputMarkdown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, out, "customers", "valid schemas are still listed")
}

func TestSeedCommand(t *testing.T) {
	project := testutil.SetupTestProject(t)
	db := filepath.Join(project, "data", "backend.db")

	out, _, err := run(t, NewSeedCommand(), project, "http://localhost/api", config.OutputText,
		"customers", "--count", "7", "--database", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Inserted 7 records")
	_, err = os.Stat(db)
	assert.NoError(t, err)

	_, _, err = run(t, NewSeedCommand(), project, "http://localhost/api", config.OutputText, "orders", "--database", db)
	assert.Error(t, err)
}

func TestMissingSchemasDirectory(t *testing.T) {
	_, _, err := run(t, NewListCommand(), t.TempDir(), "http://localhost/api", config.OutputText, "customers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schemas directory does not exist")
}
