// Package cmd defines the review-hub command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/app"
	"github.com/JakeFAU/review-hub/internal/config"
	"github.com/JakeFAU/review-hub/internal/logging"
	"github.com/JakeFAU/review-hub/internal/telemetry"
)

// version is stamped at build time with -ldflags "-X ...cmd.version=...".
var version = "dev"

// cli carries what the root command prepares for its subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
	tracer  *trace.TracerProvider

	// newApp is swapped in tests.
	newApp func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.App, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), newApp: app.New}

	cmd := &cobra.Command{
		Use:   "review-hub",
		Short: "Collects storefront reviews into a shared sink.",
		Long: `review-hub discovers products on brand storefronts, collects their
reviews with a headless browser or plain HTTP, and reconciles them into a
spreadsheet-style sink without duplicating rows already written.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			c.teardown(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (yaml)")
	cmd.PersistentFlags().Bool("dev", false, "human-readable development logging")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	mustBind(c.v, "logging.development", cmd.PersistentFlags().Lookup("dev"))
	mustBind(c.v, "logging.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(
		newRunCmd(c),
		newStatusCmd(c),
		newDedupeCmd(c),
		newIngestCmd(c),
		newServeCmd(c),
	)
	return cmd
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.LoadWith(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	c.logger = logger

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{ServiceName: "review-hub", Version: version})
	if err != nil {
		return err
	}
	c.tracer = tp
	return nil
}

func (c *cli) teardown(ctx context.Context) {
	if c.tracer != nil {
		if err := c.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// buildApp constructs the service container for one command.
func (c *cli) buildApp(ctx context.Context) (*app.App, error) {
	a, err := c.newApp(ctx, &c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, nil
}

// mustBind ties a flag to a config key. Binding only fails for a nil flag,
// which is a programming error.
func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "review-hub:", err)
		os.Exit(1)
	}
}
