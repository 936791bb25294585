package pricedit

import (
	"fmt"
	"strings"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit/parser"
)

// ScanFormulaReferences lists the formula cells of sheetName whose formula
// text mentions the Prices sheet or one of the price cells. Matching is by
// substring, so unrelated references such as AD40 also match.
func ScanFormulaReferences(wb *Workbook, sheetName string) ([]models.FormulaRef, error) {
	if !wb.HasSheet(sheetName) {
		return nil, &SheetMissingError{SheetName: sheetName}
	}

	data, err := wb.Bytes()
	if err != nil {
		return nil, err
	}
	cells, err := parser.ScanFormulaCells(data, sheetName)
	if err != nil {
		return nil, fmt.Errorf("scan formulas in %q: %w", sheetName, err)
	}

	var refs []models.FormulaRef
	for _, cell := range cells {
		// Shared formulas only carry their text on the anchor cell.
		formula, err := wb.file.GetCellFormula(sheetName, cell.Cell)
		if err != nil || formula == "" {
			formula = cell.Formula
		}
		if !ReferencesPrices(formula) {
			continue
		}
		refs = append(refs, models.FormulaRef{
			Cell:        cell.Cell,
			Formula:     formula,
			CachedValue: cell.Cached,
		})
	}
	return refs, nil
}

// ReferencesPrices reports whether a formula mentions the Prices sheet or
// any of the price cells.
func ReferencesPrices(formula string) bool {
	if strings.Contains(formula, PricesSheet+"!") || strings.Contains(formula, "'"+PricesSheet+"'!") {
		return true
	}
	for _, cell := range PriceCells {
		if strings.Contains(formula, cell) {
			return true
		}
	}
	return false
}

// DefaultDiagnosticsShown is how many references a diagnostics listing shows.
const DefaultDiagnosticsShown = 10

// SummarizeReferences keeps the first n references of refs for display.
func SummarizeReferences(sheetName string, refs []models.FormulaRef, n int) *models.Diagnostics {
	if n < 0 {
		n = 0
	}
	shown := refs
	if len(shown) > n {
		shown = shown[:n]
	}
	return &models.Diagnostics{
		Sheet:     sheetName,
		Total:     len(refs),
		Refs:      shown,
		Remaining: len(refs) - len(shown),
	}
}
