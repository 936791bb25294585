// Package pricedit edits the price cells of a workbook and exports its
// formula-driven Export sheet to CSV.
package pricedit

import "time"

const (
	// PricesSheet is the sheet holding the editable price cells.
	PricesSheet = "Prices"
	// ExportSheet is the sheet flattened into CSV.
	ExportSheet = "Export"
	// ExportFileName is the file name offered for the CSV download.
	ExportFileName = "export_data.csv"
	// ExportMIMEType is the content type of the CSV download.
	ExportMIMEType = "text/csv"
)

// PriceCells lists the editable cells in display order.
var PriceCells = []string{"D4", "D5", "D6", "D7"}

// Tier names the strategy that produced an export snapshot.
type Tier string

const (
	// TierCached accepts the cached values stored in the file.
	TierCached Tier = "cached"
	// TierResolved re-evaluates formula cells while reading.
	TierResolved Tier = "resolved"
	// TierBasic is the last-resort plain read after a failure.
	TierBasic Tier = "basic"
)

// ExportOptions configures the export pipeline.
type ExportOptions struct {
	// ProbeRows is how many leading rows the staleness probe inspects.
	// Zero means DefaultProbeRows.
	ProbeRows int
	// HeaderCells are skipped by the staleness probe.
	// If nil, defaults to A1, B1 and C1.
	HeaderCells []string
	// TempDir is where the working copy is written. Empty means os.TempDir().
	TempDir string
	// ForceResolve skips the probe and always evaluates formulas on read.
	ForceResolve bool
	// EngineTimeout bounds the external recalculation engine.
	// Zero means DefaultEngineTimeout.
	EngineTimeout time.Duration
}

// DefaultProbeRows is the number of rows inspected by the staleness probe.
const DefaultProbeRows = 10

// DefaultEngineTimeout bounds a single external recalculation.
const DefaultEngineTimeout = 60 * time.Second

// DefaultHeaderCells are the cells the staleness probe treats as header.
var DefaultHeaderCells = []string{"A1", "B1", "C1"}

// DefaultExportOptions returns default export options.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		ProbeRows: DefaultProbeRows,
	}
}

// ProbeRowLimit returns the effective probe row count.
func (o ExportOptions) ProbeRowLimit() int {
	if o.ProbeRows > 0 {
		return o.ProbeRows
	}
	return DefaultProbeRows
}

// ProbeHeaderCells returns the cells the probe skips.
func (o ExportOptions) ProbeHeaderCells() []string {
	if o.HeaderCells != nil {
		return o.HeaderCells
	}
	return DefaultHeaderCells
}

// RecalcTimeout returns the effective engine timeout.
func (o ExportOptions) RecalcTimeout() time.Duration {
	if o.EngineTimeout > 0 {
		return o.EngineTimeout
	}
	return DefaultEngineTimeout
}
