package pricedit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit/parser"
)

// Recorder observes export pipeline outcomes.
type Recorder interface {
	ExportCompleted(tier Tier, stale bool)
	ExportFailed(sheet string)
	EngineRun(engine string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ExportCompleted(Tier, bool) {}
func (nopRecorder) ExportFailed(string)        {}
func (nopRecorder) EngineRun(string, error)    {}

// Exporter flattens a sheet into an up-to-date snapshot despite stale
// cached formula values.
//
// Every call persists the workbook to a fresh temporary file, optionally
// lets the recalculation engine rewrite it, then reads it back. Cached
// values are accepted when the staleness probe passes; otherwise formula
// cells are evaluated on read. Any failure falls back to a plain read of
// the temporary file, which is removed on every exit path.
type Exporter struct {
	Engine  RecalcEngine
	Options ExportOptions
	Logger  *slog.Logger
	Metrics Recorder
}

// NewExporter creates an Exporter. A nil engine means NoEngine and a nil
// logger means slog.Default().
func NewExporter(engine RecalcEngine, opts ExportOptions, logger *slog.Logger) *Exporter {
	if engine == nil {
		engine = NoEngine{}
	}
	return &Exporter{
		Engine:  engine,
		Options: opts,
		Logger:  defaultLogger(logger).With(slog.String("component", "exporter")),
		Metrics: nopRecorder{},
	}
}

// ExportToCSV exports sheetName of wb to CSV without an external engine.
func ExportToCSV(ctx context.Context, wb *Workbook, sheetName string, opts ExportOptions) ([]byte, error) {
	data, _, err := NewExporter(NoEngine{}, opts, nil).ExportCSV(ctx, wb, sheetName)
	return data, err
}

// ExportCSV produces the CSV bytes of sheetName together with the snapshot
// they were rendered from.
func (e *Exporter) ExportCSV(ctx context.Context, wb *Workbook, sheetName string) ([]byte, *models.Snapshot, error) {
	snap, err := e.Snapshot(ctx, wb, sheetName)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, snap); err != nil {
		return nil, nil, NewExportError(sheetName, "csv", err)
	}
	return buf.Bytes(), snap, nil
}

// Snapshot flattens sheetName of wb. It fails with *SheetMissingError
// before touching the filesystem when the sheet is absent, and with
// *ExportError when even the basic read failed.
func (e *Exporter) Snapshot(ctx context.Context, wb *Workbook, sheetName string) (*models.Snapshot, error) {
	if !wb.HasSheet(sheetName) {
		return nil, &SheetMissingError{SheetName: sheetName}
	}
	logger := e.logger().With(slog.String("sheet", sheetName))

	tmpPath, err := e.persist(wb)
	if err != nil {
		e.recorder().ExportFailed(sheetName)
		return nil, NewExportError(sheetName, "persist", err)
	}
	defer e.cleanup(logger, tmpPath)

	snap, err := e.tiered(ctx, logger, tmpPath, sheetName)
	if err != nil {
		logger.Warn("Export tiers failed, falling back to basic read",
			slog.String("error", err.Error()))

		snap, err = basicSnapshot(tmpPath, sheetName)
		if err != nil {
			e.recorder().ExportFailed(sheetName)
			return nil, NewExportError(sheetName, "basic", err)
		}
	}

	logger.Info("Sheet exported",
		slog.String("tier", snap.Tier),
		slog.Bool("stale", snap.Stale),
		slog.Int("row_count", len(snap.Rows)))
	e.recorder().ExportCompleted(Tier(snap.Tier), snap.Stale)
	return snap, nil
}

// persist writes wb to a uniquely named file in the configured temp dir.
func (e *Exporter) persist(wb *Workbook) (string, error) {
	dir := e.Options.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "pricedit-"+uuid.NewString()+".xlsx")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if err := wb.Write(file); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (e *Exporter) cleanup(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove temporary workbook",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// tiered runs the recalculation, probe, and read tiers.
func (e *Exporter) tiered(ctx context.Context, logger *slog.Logger, path, sheetName string) (*models.Snapshot, error) {
	e.recalculate(ctx, logger, path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	defer f.Close()

	raw, err := parser.StringRows(f, sheetName)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	stale := parser.ProbeStale(raw, e.Options.ProbeRowLimit(), e.Options.ProbeHeaderCells())

	if stale || e.Options.ForceResolve {
		logger.Debug("Resolving formulas on read",
			slog.Bool("stale", stale),
			slog.Bool("forced", e.Options.ForceResolve))
		return resolvedSnapshot(path, sheetName, stale)
	}

	rows, err := parser.ReadRows(f, sheetName)
	if err != nil {
		return nil, fmt.Errorf("read cached: %w", err)
	}
	return newSnapshot(sheetName, rows, TierCached, false), nil
}

// recalculate runs the engine when one is available. Failures only
// reduce fidelity and are logged.
func (e *Exporter) recalculate(ctx context.Context, logger *slog.Logger, path string) {
	if e.Engine == nil || !e.Engine.Available() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.Options.RecalcTimeout())
	defer cancel()

	err := e.Engine.Recalculate(ctx, path)
	e.recorder().EngineRun(e.Engine.Name(), err)
	if err != nil {
		logger.Warn("Recalculation engine failed",
			slog.String("engine", e.Engine.Name()),
			slog.String("error", err.Error()))
		return
	}
	logger.Debug("Workbook recalculated", slog.String("engine", e.Engine.Name()))
}

// resolvedSnapshot reopens the persisted file and evaluates formula cells.
func resolvedSnapshot(path, sheetName string, stale bool) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	formulas, err := parser.ScanFormulaCells(data, sheetName)
	if err != nil {
		return nil, fmt.Errorf("scan formulas: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	defer f.Close()

	rows, err := parser.ResolveRows(f, sheetName, formulas)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	return newSnapshot(sheetName, rows, TierResolved, stale), nil
}

// basicSnapshot reads the persisted file with default settings.
func basicSnapshot(path, sheetName string) (*models.Snapshot, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := parser.BasicRows(f, sheetName)
	if err != nil {
		return nil, err
	}
	return newSnapshot(sheetName, rows, TierBasic, false), nil
}

func newSnapshot(sheetName string, rows [][]interface{}, tier Tier, stale bool) *models.Snapshot {
	snap := &models.Snapshot{
		Sheet:  sheetName,
		Header: []interface{}{},
		Rows:   [][]interface{}{},
		Tier:   string(tier),
		Stale:  stale,
	}
	if len(rows) > 0 {
		snap.Header = rows[0]
		snap.Rows = rows[1:]
	}
	return snap
}

// WriteCSV writes the snapshot as comma-separated UTF-8 text, header first,
// without an index column.
func WriteCSV(w io.Writer, snap *models.Snapshot) error {
	writer := csv.NewWriter(w)
	for i, record := range snap.Records() {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Preview returns the header and at most n data rows of snap, and how many
// rows were left out.
func Preview(snap *models.Snapshot, n int) *models.Preview {
	if n < 0 {
		n = 0
	}
	shown := snap.Rows
	if len(shown) > n {
		shown = shown[:n]
	}
	return &models.Preview{
		Sheet:     snap.Sheet,
		Header:    snap.Header,
		Rows:      shown,
		Remaining: len(snap.Rows) - len(shown),
	}
}

// ColumnFill counts the non-empty values of the column headed name.
// ok is false when no such column exists.
func ColumnFill(snap *models.Snapshot, name string) (filled, total int, ok bool) {
	idx := snap.ColumnIndex(name)
	if idx < 0 {
		return 0, 0, false
	}
	for _, row := range snap.Rows {
		if idx < len(row) && models.FormatValue(row[idx]) != "" {
			filled++
		}
	}
	return filled, len(snap.Rows), true
}

func (e *Exporter) logger() *slog.Logger {
	return defaultLogger(e.Logger)
}

func (e *Exporter) recorder() Recorder {
	if e.Metrics == nil {
		return nopRecorder{}
	}
	return e.Metrics
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
