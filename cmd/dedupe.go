package cmd

import (
	"github.com/spf13/cobra"
)

func newDedupeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Clears rows of the main tab whose key already appears above",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Deduper()
			if err != nil {
				return err
			}
			res, err := d.ClearDuplicates(cmd.Context(), c.cfg.Sink.ScanMaxRows, c.cfg.Sink.DedupeBatch)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Int("max-rows", 0, "rows to scan (default sink.scan_max_rows)")
	cmd.Flags().Int("batch", 0, "rows cleared per write (default sink.dedupe_batch)")
	mustBind(c.v, "sink.scan_max_rows", cmd.Flags().Lookup("max-rows"))
	mustBind(c.v, "sink.dedupe_batch", cmd.Flags().Lookup("batch"))
	return cmd
}
