package commands

import (
	"fmt"

	"github.com/leapstack-labs/docdesk/internal/devbackend"
	"github.com/leapstack-labs/docdesk/pkg/core"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	var count int
	var database string

	cmd := &cobra.Command{
		Use:   "seed [resource...]",
		Short: "Insert sample records into the reference backend",
		Long: `Insert sample records into the reference backend database. Singleton
resources are skipped. With no arguments every schema is seeded.`,
		Example: `  # Seed every resource
  docdesk seed

  # Seed only invoices, 200 rows
  docdesk seed invoices --count 200`,
		ValidArgsFunction: resourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			resources := cmdCtx.Registry.List()
			if len(args) > 0 {
				resources = make([]*core.Resource, 0, len(args))
				for _, name := range args {
					res, err := cmdCtx.Resource(name)
					if err != nil {
						return err
					}
					resources = append(resources, res)
				}
			}

			path := cmdCtx.Cfg.DevBackend.Database
			if database != "" {
				path = database
			}
			store, err := openStore(path, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := devbackend.Seed(cmd.Context(), store, resources, count)
			if err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d records into %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 50, "Records per resource")
	cmd.Flags().StringVar(&database, "database", "", "SQLite database path")

	return cmd
}
