package parser

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// rawValues reads cell values without applying number formats.
var rawValues = excelize.Options{RawCellValue: true}

// ReadRows flattens a sheet into a rectangular grid of typed values using
// the values cached in the file. The first row of the grid is the sheet's
// first row. Empty cells are nil. Number cells become int64 or float64,
// boolean cells bool, and every other cell keeps its text unchanged.
func ReadRows(f *excelize.File, sheetName string) ([][]interface{}, error) {
	rows, err := f.GetRows(sheetName, rawValues)
	if err != nil {
		return nil, err
	}
	return typedGrid(f, sheetName, rows, nil), nil
}

// ResolveRows is like ReadRows but evaluates each formula cell with the
// library's calculation engine. A formula that cannot be evaluated, or that
// evaluates to nothing, keeps its cached value.
func ResolveRows(f *excelize.File, sheetName string, formulas []FormulaCell) ([][]interface{}, error) {
	rows, err := f.GetRows(sheetName, rawValues)
	if err != nil {
		return nil, err
	}

	// Calculated values are typed by the formula's result type.
	calculated := make(map[string]string, len(formulas))
	for _, fc := range formulas {
		col, row, err := excelize.CellNameToCoordinates(fc.Cell)
		if err != nil {
			continue
		}
		value, err := f.CalcCellValue(sheetName, fc.Cell, rawValues)
		if err != nil || value == "" {
			continue
		}
		rows = setCell(rows, row-1, col-1, value)
		calculated[fc.Cell] = fc.Type
	}

	return typedGrid(f, sheetName, rows, calculated), nil
}

// BasicRows flattens a sheet with the library's default read settings.
func BasicRows(f *excelize.File, sheetName string) ([][]interface{}, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	return typedGrid(f, sheetName, rows, nil), nil
}

// StringRows reads a sheet's cached raw values as strings, padded to the
// sheet's data width.
func StringRows(f *excelize.File, sheetName string) ([][]string, error) {
	rows, err := f.GetRows(sheetName, rawValues)
	if err != nil {
		return nil, err
	}
	return padGrid(rows), nil
}

// typedGrid pads rows to the data bounds and converts each value by the
// stored type of its cell. calculated maps cells whose value came from
// the calculation engine to the formula's cell type attribute.
func typedGrid(f *excelize.File, sheetName string, rows [][]string, calculated map[string]string) [][]interface{} {
	padded := padGrid(rows)
	if len(padded) == 0 {
		return nil
	}

	grid := make([][]interface{}, len(padded))
	for r, row := range padded {
		out := make([]interface{}, len(row))
		for c, cell := range row {
			if cell == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				out[c] = cell
				continue
			}
			if cellType, ok := calculated[name]; ok {
				out[c] = calculatedValue(cellType, cell)
				continue
			}
			out[c] = storedValue(f, sheetName, name, cell)
		}
		grid[r] = out
	}
	return grid
}

// storedValue converts a cell's text according to its cell type. Only
// number and untyped cells are parsed; strings, dates and errors stay text.
func storedValue(f *excelize.File, sheetName, cell, s string) interface{} {
	cellType, err := f.GetCellType(sheetName, cell)
	if err != nil {
		return s
	}
	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return parseValue(s)
	case excelize.CellTypeBool:
		return parseBool(s)
	default:
		return s
	}
}

// calculatedValue converts a calculation result using the formula cell's
// type attribute ("" for numbers, "str" for text, "b" for booleans).
func calculatedValue(cellType, s string) interface{} {
	switch cellType {
	case "", "n":
		return parseValue(s)
	case "b":
		return parseBool(s)
	default:
		return s
	}
}

func parseBool(s string) interface{} {
	switch strings.ToUpper(s) {
	case "1", "TRUE":
		return true
	case "0", "FALSE":
		return false
	default:
		return s
	}
}

// padGrid trims trailing empty rows and pads every row to the widest one.
func padGrid(rows [][]string) [][]string {
	b := DataBounds(rows)
	if b.Empty() {
		return nil
	}

	width := b.MaxCol + 1
	grid := make([][]string, b.MaxRow+1)
	for r := range grid {
		row := make([]string, width)
		if r < len(rows) {
			copy(row, rows[r])
		}
		grid[r] = row
	}
	return grid
}

func setCell(rows [][]string, r, c int, value string) [][]string {
	for len(rows) <= r {
		rows = append(rows, nil)
	}
	for len(rows[r]) <= c {
		rows[r] = append(rows[r], "")
	}
	rows[r][c] = value
	return rows
}

// parseValue attempts to parse a string value as a number.
// Returns int64 for integers, float64 for decimals, or the original string.
// Text that only looks numeric to a permissive parser (NaN, Inf, hex,
// zero-padded codes) stays text.
func parseValue(s string) interface{} {
	if !looksNumeric(s) {
		return s
	}
	// Try integer first
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// Try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	// Return as string
	return s
}

func looksNumeric(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return false
	}
	if c := digits[0]; (c < '0' || c > '9') && c != '.' {
		return false
	}
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return false
	}
	return !strings.ContainsAny(digits, "xXpP_")
}
