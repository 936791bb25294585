package pricedit

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
)

// ReadPrices returns the stored values of D4..D7 on the Prices sheet.
// It returns a nil PriceSet and no error when the sheet is absent.
func ReadPrices(wb *Workbook) (*models.PriceSet, error) {
	if !wb.HasSheet(PricesSheet) {
		return nil, nil
	}

	prices := &models.PriceSet{
		Sheet:  PricesSheet,
		Cells:  append([]string(nil), PriceCells...),
		Values: make(map[string]interface{}, len(PriceCells)),
	}
	for _, cell := range PriceCells {
		value, err := readCell(wb.file, PricesSheet, cell)
		if err != nil {
			return nil, err
		}
		prices.Values[cell] = value
	}
	return prices, nil
}

// readCell returns the stored value of a cell typed by its cell type.
func readCell(f *excelize.File, sheet, cell string) (interface{}, error) {
	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	cellType, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "TRUE"), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, nil
		}
	}
	return raw, nil
}

// WritePrices stores new values into D4..D7 on the Prices sheet.
// It returns false without modifying anything when the sheet is absent.
// Each value passes through CoerceInput; keys missing from values are
// written as the empty string.
func WritePrices(wb *Workbook, values map[string]string) (bool, error) {
	if !wb.HasSheet(PricesSheet) {
		return false, nil
	}

	for _, cell := range PriceCells {
		if err := writeCell(wb, cell, values[cell]); err != nil {
			return false, err
		}
	}
	wb.markForRecalc(defaultLogger(nil))
	return true, nil
}

// UpdatePrices is like WritePrices but only writes the cells present in
// values. Other price cells keep their content, formulas included.
// Keys that are not price cells are ignored.
func UpdatePrices(wb *Workbook, values map[string]string) (bool, error) {
	if !wb.HasSheet(PricesSheet) {
		return false, nil
	}

	for _, cell := range PriceCells {
		input, ok := values[cell]
		if !ok {
			continue
		}
		if err := writeCell(wb, cell, input); err != nil {
			return false, err
		}
	}
	wb.markForRecalc(defaultLogger(nil))
	return true, nil
}

func writeCell(wb *Workbook, cell, input string) error {
	if err := wb.file.SetCellValue(PricesSheet, cell, CoerceInput(input)); err != nil {
		return &WriteError{SheetName: PricesSheet, Cell: cell, Err: err}
	}
	return nil
}

// CoerceInput converts operator input into a cell value: a float64 when
// IsNumericInput accepts s, otherwise s unchanged. Numeric input beyond
// the float64 range is kept as text because a worksheet cell cannot
// store an infinite number.
func CoerceInput(s string) interface{} {
	if !IsNumericInput(s) {
		return s
	}
	v, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) {
		return s
	}
	return v
}

// IsNumericInput reports whether s is numeric under the editor's rule:
// after removing at most one '.' and one leading '-', what remains is a
// non-empty run of ASCII digits. Exponents, signs other than a leading
// '-', whitespace and grouping separators make s text.
func IsNumericInput(s string) bool {
	rest := strings.TrimPrefix(s, "-")
	rest = strings.Replace(rest, ".", "", 1)
	if rest == "" {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}
