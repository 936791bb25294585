package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/davidluisklein/wire-price-change/internal/session"
	transport "github.com/davidluisklein/wire-price-change/internal/transport/http"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
)

// workbookPath returns the positional file argument or the configured
// bundled workbook.
func (a *app) workbookPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Workbook.Path
}

func (a *app) open(args []string) (*pricedit.Workbook, error) {
	return pricedit.Open(a.workbookPath(args))
}

func (a *app) sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [file]",
		Short: "List the sheets of a workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.open(args)
			if err != nil {
				return err
			}
			defer wb.Close()

			sheets := wb.Sheets(a.cfg.Workbook.ExportSheet)
			if a.jsonOutput {
				return printJSON(cmd, sheets)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, sheet := range sheets {
				fmt.Fprintf(tw, "%s\t%s\n", sheet.Name, sheet.Role)
			}
			return tw.Flush()
		},
	}
}

func (a *app) pricesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prices [file]",
		Short: "Show the stored price cells",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.open(args)
			if err != nil {
				return err
			}
			defer wb.Close()

			prices, err := pricedit.ReadPrices(wb)
			if err != nil {
				return err
			}
			if prices == nil {
				return &pricedit.SheetMissingError{SheetName: pricedit.PricesSheet}
			}
			if a.jsonOutput {
				return printJSON(cmd, prices)
			}
			values := prices.Strings()
			for _, cell := range prices.Cells {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", cell, values[cell])
			}
			return nil
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	var outPath string
	inputs := make(map[string]*string, len(pricedit.PriceCells))

	cmd := &cobra.Command{
		Use:   "set [file]",
		Short: "Write new price values and save the workbook",
		Long: `set writes the given price cells. Cells without a flag are left
untouched, formulas included. Numeric input is stored as a number, anything else as text;
an empty value clears the cell.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.open(args)
			if err != nil {
				return err
			}
			defer wb.Close()

			values := make(map[string]string, len(pricedit.PriceCells))
			for _, cell := range pricedit.PriceCells {
				if cmd.Flags().Changed(flagName(cell)) {
					values[cell] = *inputs[cell]
				}
			}
			ok, err := pricedit.UpdatePrices(wb, values)
			if err != nil {
				return err
			}
			if !ok {
				return &pricedit.SheetMissingError{SheetName: pricedit.PricesSheet}
			}

			dest := wb.Path()
			if outPath != "" {
				dest = outPath
			}
			if err := wb.SaveAs(dest); err != nil {
				return err
			}
			a.metrics.PricesUpdated()
			a.logger.Info("Prices saved", slog.String("path", dest))

			saved, err := pricedit.ReadPrices(wb)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return printJSON(cmd, saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved prices to %s\n", dest)
			return nil
		},
	}

	for _, cell := range pricedit.PriceCells {
		inputs[cell] = cmd.Flags().String(flagName(cell), "", fmt.Sprintf("New value for %s!%s", pricedit.PricesSheet, cell))
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Save to this path instead of the input file")
	return cmd
}

// flagName maps a cell reference to its flag, e.g. "D4" to "d4".
func flagName(cell string) string {
	return strings.ToLower(cell)
}

func (a *app) exportCmd() *cobra.Command {
	var (
		outPath      string
		sheetName    string
		forceResolve bool
	)

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export a sheet to CSV with up-to-date formula values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.open(args)
			if err != nil {
				return err
			}
			defer wb.Close()

			exporter, err := a.exporter(forceResolve)
			if err != nil {
				return err
			}
			sheet := a.sheetOrDefault(sheetName)
			data, snap, err := exporter.ExportCSV(cmd.Context(), wb, sheet)
			if err != nil {
				return err
			}

			if outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			a.warnEmptyHint(snap)
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rows from %s (%s) to %s\n",
				len(snap.Rows), snap.Sheet, snap.Tier, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", pricedit.ExportFileName, `Output CSV path ("-" for stdout)`)
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Sheet to export (default: configured export sheet)")
	cmd.Flags().BoolVar(&forceResolve, "force-resolve", false, "Always evaluate formulas on read")
	return cmd
}

func (a *app) previewCmd() *cobra.Command {
	var (
		rows      int
		sheetName string
	)

	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Show the first rows of the export",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.open(args)
			if err != nil {
				return err
			}
			defer wb.Close()

			exporter, err := a.exporter(false)
			if err != nil {
				return err
			}
			snap, err := exporter.Snapshot(cmd.Context(), wb, a.sheetOrDefault(sheetName))
			if err != nil {
				return err
			}

			n := rows
			if !cmd.Flags().Changed("rows") {
				n = a.cfg.Export.PreviewRows
			}
			preview := pricedit.Preview(snap, n)
			if a.jsonOutput {
				return printJSON(cmd, preview)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			writeRow(tw, preview.Header)
			for _, row := range preview.Rows {
				writeRow(tw, row)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if preview.Remaining > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "... and %d more rows\n", preview.Remaining)
			}
			a.warnEmptyHint(snap)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 10, "Number of data rows to show")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Sheet to preview (default: configured export sheet)")
	return cmd
}

func writeRow(tw *tabwriter.Writer, row []interface{}) {
	for i, v := range row {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, models.FormatValue(v))
	}
	fmt.Fprintln(tw)
}

func (a *app) diagnoseCmd() *cobra.Command {
	var sheetName string

	cmd := &cobra.Command{
		Use:   "diagnose [file]",
		Short: "List formulas that depend on the price cells",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.open(args)
			if err != nil {
				return err
			}
			defer wb.Close()

			sheet := a.sheetOrDefault(sheetName)
			refs, err := pricedit.ScanFormulaReferences(wb, sheet)
			if err != nil {
				return err
			}
			summary := pricedit.SummarizeReferences(sheet, refs, pricedit.DefaultDiagnosticsShown)
			if a.jsonOutput {
				return printJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			if summary.Total == 0 {
				fmt.Fprintf(out, "No formulas in %s reference the price cells\n", sheet)
				return nil
			}
			fmt.Fprintf(out, "Found %d formulas in %s referencing the price cells\n", summary.Total, sheet)
			for _, ref := range summary.Refs {
				fmt.Fprintf(out, "  %s: =%s (cached: %s)\n", ref.Cell, ref.Formula, ref.CachedValue)
			}
			if summary.Remaining > 0 {
				fmt.Fprintf(out, "  ... and %d more\n", summary.Remaining)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Sheet to scan (default: configured export sheet)")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP operator surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			exporter, err := a.exporter(false)
			if err != nil {
				return err
			}

			sessions := session.NewManager(session.Options{
				BundledPath:    a.cfg.Workbook.Path,
				Dir:            a.cfg.Server.SessionDir,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
				Logger:         a.logger,
				Observer:       a.metrics,
			})
			router := transport.NewRouter(transport.Deps{
				Sessions:       sessions,
				Exporter:       exporter,
				Metrics:        a.metrics,
				Logger:         a.logger,
				ExportSheet:    a.cfg.Workbook.ExportSheet,
				PreviewRows:    a.cfg.Export.PreviewRows,
				HintColumn:     a.cfg.Export.HintColumn,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
			})

			return transport.NewServer(a.cfg.Server, router, sessions, a.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: configured server address)")
	return cmd
}

func (a *app) sheetOrDefault(name string) string {
	if name != "" {
		return name
	}
	return a.cfg.Workbook.ExportSheet
}

// warnEmptyHint logs when the hint column exists but holds no values,
// which usually means the formulas feeding it did not evaluate.
func (a *app) warnEmptyHint(snap *models.Snapshot) {
	column := a.cfg.Export.HintColumn
	if column == "" {
		return
	}
	filled, total, ok := pricedit.ColumnFill(snap, column)
	if !ok {
		return
	}
	if filled == 0 && total > 0 {
		a.logger.Warn("Export column has no values",
			slog.String("column", column),
			slog.Int("rows", total))
		return
	}
	a.logger.Info("Export column filled",
		slog.String("column", column),
		slog.Int("filled", filled),
		slog.Int("rows", total))
}
