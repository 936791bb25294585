package pricedit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
)

// fakeEngine is a RecalcEngine whose behaviour is set per test.
type fakeEngine struct {
	available bool
	calls     int
	paths     []string
	recalc    func(path string) error
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Available() bool { return e.available }
func (e *fakeEngine) Recalculate(_ context.Context, path string) error {
	e.calls++
	e.paths = append(e.paths, path)
	if e.recalc != nil {
		return e.recalc(path)
	}
	return nil
}

// countingRecorder records pipeline outcomes.
type countingRecorder struct {
	completed []Tier
	failed    int
	engineErr []error
}

func (r *countingRecorder) ExportCompleted(tier Tier, _ bool) { r.completed = append(r.completed, tier) }
func (r *countingRecorder) ExportFailed(string)              { r.failed++ }
func (r *countingRecorder) EngineRun(_ string, err error)    { r.engineErr = append(r.engineErr, err) }

func newTestExporter(t *testing.T, engine RecalcEngine) (*Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	opts := DefaultExportOptions()
	opts.TempDir = dir
	return NewExporter(engine, opts, nil), dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files left behind")
}

func setScenarioPrices(t *testing.T, wb *Workbook) {
	t.Helper()
	ok, err := WritePrices(wb, map[string]string{"D4": "15", "D5": "20", "D6": "30", "D7": "40"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExportStaleCachedValue(t *testing.T) {
	wb := scenarioWorkbook(t, "20")
	setScenarioPrices(t, wb)

	prices, err := ReadPrices(wb)
	require.NoError(t, err)
	assert.EqualValues(t, 15.0, prices.Get("D4"))
	assert.EqualValues(t, 20, prices.Get("D5"))
	assert.EqualValues(t, 30, prices.Get("D6"))
	assert.EqualValues(t, 40, prices.Get("D7"))

	exporter, dir := newTestExporter(t, NoEngine{})
	data, snap, err := exporter.ExportCSV(context.Background(), wb, ExportSheet)
	require.NoError(t, err)

	assert.Equal(t, string(TierCached), snap.Tier)
	assert.False(t, snap.Stale)
	assert.Equal(t, []interface{}{"SKU", "Variant Price"}, snap.Header)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, int64(20), snap.Rows[0][1], "without recalculation the cached value is kept")
	assert.Equal(t, "SKU,Variant Price\nwidget,20\n", string(data))
	assertDirEmpty(t, dir)
}

func TestExportForceResolve(t *testing.T) {
	wb := scenarioWorkbook(t, "20")
	setScenarioPrices(t, wb)

	exporter, dir := newTestExporter(t, NoEngine{})
	exporter.Options.ForceResolve = true

	data, snap, err := exporter.ExportCSV(context.Background(), wb, ExportSheet)
	require.NoError(t, err)
	assert.Equal(t, string(TierResolved), snap.Tier)
	assert.Equal(t, int64(30), snap.Rows[0][1])
	assert.Equal(t, "SKU,Variant Price\nwidget,30\n", string(data))
	assertDirEmpty(t, dir)
}

func TestExportMissingCacheResolves(t *testing.T) {
	wb := scenarioWorkbook(t, "")
	setScenarioPrices(t, wb)

	exporter, dir := newTestExporter(t, NoEngine{})
	snap, err := exporter.Snapshot(context.Background(), wb, ExportSheet)
	require.NoError(t, err)

	assert.Equal(t, string(TierResolved), snap.Tier)
	assert.True(t, snap.Stale)
	assert.Equal(t, int64(30), snap.Rows[0][1])
	assertDirEmpty(t, dir)
}

func TestExportDegraded(t *testing.T) {
	data := buildWorkbook(t,
		pricesSheet(),
		sheet(ExportSheet,
			str("A1", "SKU"), str("B1", "Variant Price"),
			str("A2", "widget"), formula("B2", "NOSUCHFUNCTION(Prices!D4)", ""),
			str("A3", "gadget"), formula("B3", "NOSUCHFUNCTION(Prices!D5)", ""),
		),
	)
	wb, err := OpenBytes(data)
	require.NoError(t, err)
	defer wb.Close()

	exporter, dir := newTestExporter(t, NoEngine{})
	snap, err := exporter.Snapshot(context.Background(), wb, ExportSheet)
	require.NoError(t, err, "unresolvable formulas degrade the export instead of failing it")

	assert.Equal(t, []interface{}{"SKU", "Variant Price"}, snap.Header)
	require.Len(t, snap.Rows, 2)
	for _, row := range snap.Rows {
		require.Len(t, row, 2)
		_, isNumber := row[1].(int64)
		assert.False(t, isNumber, "unresolved formula must not produce a number: %v", row[1])
	}
	assert.Equal(t, "widget", snap.Rows[0][0])
	assertDirEmpty(t, dir)
}

func TestExportHeaderPreservation(t *testing.T) {
	for _, n := range []int{0, 1, 5, 25} {
		t.Run(fmt.Sprintf("%d rows", n), func(t *testing.T) {
			cells := []fixtureCell{str("A1", "SKU"), str("B1", "Qty"), str("C1", "Variant Price")}
			for i := 0; i < n; i++ {
				row := i + 2
				cells = append(cells,
					str(fmt.Sprintf("A%d", row), fmt.Sprintf("sku-%d", i)),
					num(fmt.Sprintf("B%d", row), float64(i)),
					formula(fmt.Sprintf("C%d", row), "Prices!D4*2", "20"),
				)
			}
			wb, err := OpenBytes(buildWorkbook(t, pricesSheet(), sheet(ExportSheet, cells...)))
			require.NoError(t, err)
			defer wb.Close()

			exporter, dir := newTestExporter(t, NoEngine{})
			data, snap, err := exporter.ExportCSV(context.Background(), wb, ExportSheet)
			require.NoError(t, err)

			assert.Equal(t, []interface{}{"SKU", "Qty", "Variant Price"}, snap.Header)
			assert.Len(t, snap.Rows, n)
			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
			assert.Equal(t, "SKU,Qty,Variant Price", lines[0])
			assert.Len(t, lines, n+1)
			assertDirEmpty(t, dir)
		})
	}
}

func TestExportEmptySheet(t *testing.T) {
	wb, err := OpenBytes(buildWorkbook(t, pricesSheet(), sheet(ExportSheet)))
	require.NoError(t, err)
	defer wb.Close()

	exporter, dir := newTestExporter(t, NoEngine{})
	data, snap, err := exporter.ExportCSV(context.Background(), wb, ExportSheet)
	require.NoError(t, err)
	assert.Empty(t, snap.Header)
	assert.Empty(t, snap.Rows)
	assert.Empty(t, data)
	assertDirEmpty(t, dir)
}

func TestExportMissingSheet(t *testing.T) {
	wb, err := OpenBytes(buildWorkbook(t, pricesSheet()))
	require.NoError(t, err)
	defer wb.Close()

	engine := &fakeEngine{available: true}
	exporter, dir := newTestExporter(t, engine)
	_, _, err = exporter.ExportCSV(context.Background(), wb, ExportSheet)

	var missing *SheetMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, ExportSheet, missing.SheetName)
	assert.ErrorIs(t, err, ErrSheetMissing)
	assert.Zero(t, engine.calls, "no work happens before the sheet check")
	assertDirEmpty(t, dir)
}

func TestExportEngine(t *testing.T) {
	t.Run("engine runs on the persisted copy", func(t *testing.T) {
		wb := scenarioWorkbook(t, "20")
		engine := &fakeEngine{available: true}
		exporter, dir := newTestExporter(t, engine)
		recorder := &countingRecorder{}
		exporter.Metrics = recorder

		_, err := exporter.Snapshot(context.Background(), wb, ExportSheet)
		require.NoError(t, err)
		require.Equal(t, 1, engine.calls)
		assert.Contains(t, engine.paths[0], dir)
		assert.Equal(t, []Tier{TierCached}, recorder.completed)
		assert.Equal(t, []error{nil}, recorder.engineErr)
		assertDirEmpty(t, dir)
	})

	t.Run("unavailable engine is skipped", func(t *testing.T) {
		wb := scenarioWorkbook(t, "20")
		engine := &fakeEngine{available: false}
		exporter, _ := newTestExporter(t, engine)

		_, err := exporter.Snapshot(context.Background(), wb, ExportSheet)
		require.NoError(t, err)
		assert.Zero(t, engine.calls)
	})

	t.Run("engine failure does not block later tiers", func(t *testing.T) {
		wb := scenarioWorkbook(t, "")
		setScenarioPrices(t, wb)
		engine := &fakeEngine{available: true, recalc: func(string) error { return errors.New("engine crashed") }}
		exporter, dir := newTestExporter(t, engine)

		snap, err := exporter.Snapshot(context.Background(), wb, ExportSheet)
		require.NoError(t, err)
		assert.Equal(t, string(TierResolved), snap.Tier)
		assert.Equal(t, int64(30), snap.Rows[0][1])
		assertDirEmpty(t, dir)
	})
}

func TestExportAllTiersFail(t *testing.T) {
	wb := scenarioWorkbook(t, "20")
	engine := &fakeEngine{available: true, recalc: func(path string) error {
		return os.WriteFile(path, []byte("corrupted by engine"), 0o600)
	}}
	exporter, dir := newTestExporter(t, engine)
	recorder := &countingRecorder{}
	exporter.Metrics = recorder

	data, snap, err := exporter.ExportCSV(context.Background(), wb, ExportSheet)
	assert.Nil(t, data)
	assert.Nil(t, snap)

	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, "basic", exportErr.Stage)
	assert.Equal(t, 1, recorder.failed)
	assertDirEmpty(t, dir)
}

func TestExportToCSV(t *testing.T) {
	wb := scenarioWorkbook(t, "20")
	opts := DefaultExportOptions()
	opts.TempDir = t.TempDir()

	data, err := ExportToCSV(context.Background(), wb, ExportSheet, opts)
	require.NoError(t, err)
	assert.Equal(t, "SKU,Variant Price\nwidget,20\n", string(data))
	assertDirEmpty(t, opts.TempDir)
}

func TestExportKeepsNumericLookingText(t *testing.T) {
	data := buildWorkbook(t,
		pricesSheet(),
		sheet(ExportSheet,
			str("A1", "SKU"), str("B1", "Code"),
			str("A2", "1.50"), str("B2", "12E3"),
			str("A3", "12345678901234567890"), str("B3", "-0"),
		),
	)

	for _, force := range []bool{false, true} {
		wb, err := OpenBytes(data)
		require.NoError(t, err)

		opts := DefaultExportOptions()
		opts.TempDir = t.TempDir()
		opts.ForceResolve = force

		out, err := ExportToCSV(context.Background(), wb, ExportSheet, opts)
		require.NoError(t, err)
		assert.Equal(t, "SKU,Code\n1.50,12E3\n12345678901234567890,-0\n", string(out), "force resolve: %v", force)
		wb.Close()
	}
}

func TestWriteCSV(t *testing.T) {
	snap := &models.Snapshot{
		Header: []interface{}{"Name", "Price", "Note"},
		Rows: [][]interface{}{
			{"a, b", 1.5, nil},
			{`say "hi"`, int64(2), true},
		},
	}

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, snap))
	assert.Equal(t, "Name,Price,Note\n\"a, b\",1.5,\n\"say \"\"hi\"\"\",2,TRUE\n", sb.String())
}

func TestPreview(t *testing.T) {
	snap := &models.Snapshot{Sheet: ExportSheet, Header: []interface{}{"n"}}
	for i := 0; i < 12; i++ {
		snap.Rows = append(snap.Rows, []interface{}{int64(i)})
	}

	p := Preview(snap, 10)
	assert.Len(t, p.Rows, 10)
	assert.Equal(t, 2, p.Remaining)
	assert.Equal(t, snap.Header, p.Header)

	p = Preview(snap, 50)
	assert.Len(t, p.Rows, 12)
	assert.Zero(t, p.Remaining)
}

func TestColumnFill(t *testing.T) {
	snap := &models.Snapshot{
		Header: []interface{}{"SKU", "Variant Price"},
		Rows: [][]interface{}{
			{"a", 10.0},
			{"b", nil},
			{"c", ""},
		},
	}

	filled, total, ok := ColumnFill(snap, "Variant Price")
	require.True(t, ok)
	assert.Equal(t, 1, filled)
	assert.Equal(t, 3, total)

	_, _, ok = ColumnFill(snap, "Missing")
	assert.False(t, ok)
}
