package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/config"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs collection rounds until the time budget is spent",
		Long: `Runs discovery, collection and reconciliation for every selected
catalog source, round after round, until runner.max_minutes elapse or --once
is given. Only one run may hold the run lock at a time. The run summary is
printed as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noErrLog, _ := cmd.Flags().GetBool("no-error-log"); noErrLog {
				c.cfg.Runner.ErrorLog = false
			}
			return runCollect(cmd, c)
		},
	}

	f := cmd.Flags()
	f.StringSlice("source", nil, "only run these sources (brand_platform); repeatable")
	f.StringSlice("brand", nil, "only run sources of these brands; repeatable")
	f.Int("max-items", 0, "products to discover per source")
	f.Int("max-pages", 0, "review pages to read per product")
	f.Int("max-reviews", 0, "reviews to read per product")
	f.Int("max-minutes", 0, "wall-clock budget for the whole run")
	f.Int("lookback-days", 0, "drop reviews older than this many days (0 keeps all)")
	f.Bool("once", false, "stop after a single round")
	f.Bool("dry-run", false, "collect without writing to the sink or state files")
	f.Bool("no-error-log", false, "do not write failures to the error tabs")

	mustBind(c.v, "runner.sources", f.Lookup("source"))
	mustBind(c.v, "runner.brands", f.Lookup("brand"))
	mustBind(c.v, "discovery.max_items", f.Lookup("max-items"))
	mustBind(c.v, "collector.max_pages", f.Lookup("max-pages"))
	mustBind(c.v, "collector.max_reviews", f.Lookup("max-reviews"))
	mustBind(c.v, "runner.max_minutes", f.Lookup("max-minutes"))
	mustBind(c.v, "runner.lookback_days", f.Lookup("lookback-days"))
	mustBind(c.v, "runner.once", f.Lookup("once"))
	mustBind(c.v, "runner.dry_run", f.Lookup("dry-run"))
	return cmd
}

func runCollect(cmd *cobra.Command, c *cli) error {
	if c.cfg.Runner.DryRun && c.cfg.Sink.Kind != config.SinkMemory {
		c.logger.Info("dry run: using in-memory sink", zap.String("configured", c.cfg.Sink.Kind))
		c.cfg.Sink.Kind = config.SinkMemory
	}

	a, err := c.buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.Orchestrator()
	if err != nil {
		return err
	}
	summary, err := orch.Loop(cmd.Context())
	if err != nil {
		return err
	}
	c.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("rounds", summary.Rounds),
		zap.Int("new", summary.New),
		zap.Int("updated", summary.Updated),
		zap.Int("errored", summary.Errored),
	)
	if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
