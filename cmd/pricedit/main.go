// Package main provides the CLI entry point for pricedit.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidluisklein/wire-price-change/internal/config"
	"github.com/davidluisklein/wire-price-change/internal/logging"
	"github.com/davidluisklein/wire-price-change/internal/metrics"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
)

// app carries state shared by every sub-command once the root command has
// loaded configuration.
type app struct {
	configPath string
	logLevel   string
	jsonOutput bool

	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
	metrics *metrics.Recorder
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "pricedit",
		Short: "Edit workbook prices and export the Export sheet to CSV",
		Long: `pricedit edits the four price cells (Prices!D4:D7) of an xlsx workbook
and exports its formula-driven Export sheet to CSV with up-to-date values.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default: $PRICEDIT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(
		a.sheetsCmd(),
		a.pricesCmd(),
		a.setCmd(),
		a.exportCmd(),
		a.previewCmd(),
		a.diagnoseCmd(),
		a.serveCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	a.closer = closer
	a.metrics = metrics.New()
	return nil
}

func (a *app) teardown() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// exporter builds the pipeline from configuration.
func (a *app) exporter(forceResolve bool) (*pricedit.Exporter, error) {
	engine, err := pricedit.DetectEngine(a.cfg.Export.Engine, a.cfg.Export.SofficePath)
	if err != nil {
		return nil, err
	}
	opts := a.cfg.ExportOptions()
	opts.ForceResolve = opts.ForceResolve || forceResolve

	exporter := pricedit.NewExporter(engine, opts, a.logger)
	exporter.Metrics = a.metrics
	a.logger.Debug("Export pipeline ready",
		slog.String("engine", engine.Name()),
		slog.Bool("engine_available", engine.Available()))
	return exporter, nil
}

// printJSON writes v to the command's stdout.
func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
