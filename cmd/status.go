package cmd

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Prints persisted state and the last archived run summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Status(nil).Collect(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}
}
