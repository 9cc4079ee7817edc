// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/docdesk/internal/cli/config"
	"github.com/leapstack-labs/docdesk/internal/devbackend"
	"github.com/leapstack-labs/docdesk/internal/schema"
	"github.com/leapstack-labs/docdesk/internal/testutil"
)

const customersYAML = `label: Customers
per_page: 10
columns:
  - header: Name
    accessor: name
  - header: Email
    accessor: email
fields:
  - name: name
    required: true
  - name: email
    type: email
`

const invoicesYAML = `label: Invoices
columns:
  - header: Invoice No
    accessor: invoice_no
  - header: Amount
    render: "money(row.get('amount'))"
    disable_filter: true
fields:
  - name: invoice_no
    required: true
  - name: amount
    type: number
`

// SetupTestProject creates a temporary project with a schemas directory
// holding customers and invoices.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	schemas := filepath.Join(tmpDir, "schemas")
	if err := os.MkdirAll(schemas, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", schemas, err)
	}
	WriteSchema(t, tmpDir, "customers.yaml", customersYAML)
	WriteSchema(t, tmpDir, "invoices.yaml", invoicesYAML)
	return tmpDir
}

// WriteSchema writes one schema file into the project's schemas directory.
func WriteSchema(t *testing.T, projectDir, name, content string) {
	t.Helper()
	path := filepath.Join(projectDir, "schemas", name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
}

// StartBackend serves the project's schemas from an in-memory reference
// backend seeded with records rows each, and returns the API root URL.
func StartBackend(t *testing.T, projectDir string, records int) string {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	reg, err := schema.LoadRegistry(filepath.Join(projectDir, "schemas"))
	if err != nil {
		t.Fatalf("failed to load schemas: %v", err)
	}
	store, err := devbackend.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := devbackend.Seed(t.Context(), store, reg.List(), records); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api", devbackend.NewServer(devbackend.Config{
		Store: store, Resources: reg, Logger: logger,
	}).Routes())
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

// Context returns a command context carrying a config for the project.
func Context(t *testing.T, projectDir, apiURL, output string) context.Context {
	t.Helper()
	cfg := &config.Config{
		SchemasDir:  filepath.Join(projectDir, "schemas"),
		Output:      output,
		API:         config.APIConfig{BaseURL: apiURL},
		UI:          config.UIConfig{DebounceMS: config.DefaultDebounceMS},
		Log:         config.LogConfig{Level: "info", Format: "text"},
		DevBackend:  config.DevBackendConfig{Database: filepath.Join(projectDir, ".docdesk", "devbackend.db")},
		ProjectRoot: projectDir,
	}
	ctx := config.WithConfig(t.Context(), cfg)
	return config.WithLogger(ctx, testutil.NewTestLogger(t))
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
