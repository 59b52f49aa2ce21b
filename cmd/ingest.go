package cmd

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-hub/internal/config"
	"github.com/JakeFAU/review-hub/internal/ingest"
	"github.com/JakeFAU/review-hub/internal/orchestrator"
)

func newIngestCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Reconciles exported review files into the sink",
	}
	cmd.PersistentFlags().String("brand", "", "brand for rows that carry none")
	cmd.PersistentFlags().Bool("dry-run", false, "read and filter without writing to the sink or state files")
	cmd.AddCommand(newIngestJSONCmd(c), newIngestXLSXCmd(c))
	return cmd
}

func newIngestJSONCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "json <file>",
		Short: "Ingests a collector JSON export (coupang, ohou)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, _ := cmd.Flags().GetString("platform")
			brand, _ := cmd.Flags().GetString("brand")
			f, err := os.Open(args[0]) //nolint:gosec // operator-supplied path
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only

			entries, err := ingest.ParseJSON(f, ingest.Defaults{Platform: platform, Brand: brand})
			if err != nil {
				return err
			}
			return runIngest(cmd, c, platform+"_json", entries)
		},
	}
	cmd.Flags().String("platform", "coupang", "platform for rows that carry none")
	return cmd
}

func newIngestXLSXCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xlsx <file>",
		Short: "Ingests a storefront review download (naver, imweb)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, _ := cmd.Flags().GetString("platform")
			sheet, ok := ingest.SheetFor(platform)
			if !ok {
				return fmt.Errorf("no spreadsheet layout for platform %q", platform)
			}
			opts := ingest.XLSXOptions{}
			opts.Brand, _ = cmd.Flags().GetString("brand")
			opts.MaxRows, _ = cmd.Flags().GetInt("max-rows")
			if expr, _ := cmd.Flags().GetString("product-regex"); expr != "" {
				re, err := regexp.Compile(expr)
				if err != nil {
					return fmt.Errorf("product-regex: %w", err)
				}
				opts.ProductPattern = re
			}

			f, err := os.Open(args[0]) //nolint:gosec // operator-supplied path
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck // read-only

			entries, err := ingest.ReadXLSX(f, sheet, opts)
			if err != nil {
				return err
			}
			return runIngest(cmd, c, sheet.Platform+"_xlsx", entries)
		},
	}
	cmd.Flags().String("platform", "naver", "export layout: naver or imweb")
	cmd.Flags().String("product-regex", "", "only rows whose product name matches")
	cmd.Flags().Int("max-rows", 0, "data rows to read (0 reads all)")
	return cmd
}

// ingestReport is printed after an ingest.
type ingestReport struct {
	Source string                    `json:"source"`
	Read   int                       `json:"read"`
	Report orchestrator.SourceReport `json:"report"`
}

func runIngest(cmd *cobra.Command, c *cli, source string, entries []ingest.Entry) error {
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		c.cfg.Runner.DryRun = true
	}
	if c.cfg.Runner.DryRun {
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
	records := ingest.Records(entries, time.Now().In(c.cfg.Location()))
	source = strings.ToLower(source)
	rep, err := orch.Ingest(cmd.Context(), source, records)
	c.logger.Info("ingest finished",
		zap.String("source", source),
		zap.Int("read", len(entries)),
		zap.Int("new", rep.New),
		zap.Int("updated", rep.Updated),
	)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), ingestReport{Source: source, Read: len(entries), Report: rep})
}
