package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/review-hub/internal/api"
)

func newServeCmd(c *cli) *cobra.Command {
	var withRunner bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves health, metrics and run status over HTTP",
		Long: `Serves /healthz, /readyz, /metrics and /v1/status on server.port.
With --run, a collection loop runs in the same process and /v1/status reports
its live per-source state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := fmt.Sprintf(":%d", c.cfg.Server.Port)
			if !withRunner {
				return api.NewServer(a.Status(nil), c.logger).ListenAndServe(ctx, addr)
			}

			orch, err := a.Orchestrator()
			if err != nil {
				return err
			}
			g, gctx := errgroup.WithContext(ctx)
			serveCtx, stopServer := context.WithCancel(gctx)
			defer stopServer()
			g.Go(func() error {
				return api.NewServer(a.Status(orch), c.logger).ListenAndServe(serveCtx, addr)
			})
			g.Go(func() error {
				// The server keeps answering after the loop so the last summary stays visible.
				summary, err := orch.Loop(gctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					stopServer()
					return err
				}
				c.logger.Info("run finished", zap.String("run_id", summary.RunID), zap.Int("new", summary.New))
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withRunner, "run", false, "also run the collection loop")
	cmd.Flags().Int("port", 0, "listen port (default server.port)")
	mustBind(c.v, "server.port", cmd.Flags().Lookup("port"))
	return cmd
}
