package commands

import (
	"github.com/leapstack-labs/docdesk/internal/script"
	"github.com/leapstack-labs/docdesk/internal/tui"
	"github.com/spf13/cobra"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse <resource>",
		Short: "Browse a resource list in the terminal",
		Long: `Open an interactive list of a resource in the terminal.

Keys: / search, n/p page, space select, a select all, d delete, r reload, q quit.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: resourceNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			res, err := cmdCtx.Resource(args[0])
			if err != nil {
				return err
			}
			c, err := cmdCtx.Client()
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), tui.Config{
				Resource: res,
				Client:   c,
				Engine:   script.NewEngine(script.WithLogger(cmdCtx.Logger)),
				Logger:   cmdCtx.Logger,
				Debounce: cmdCtx.Cfg.UI.Debounce(),
			})
		},
	}
}
