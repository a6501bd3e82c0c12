package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/tint/internal/app"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report entries whose compiled output is out of date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")
			return c.app.Check(cmd.Context(), app.CheckOptions{Quiet: quiet})
		},
	}
	cmd.Flags().BoolP("quiet", "q", false, "Suppress per-entry output, report only via exit status")
	return cmd
}
