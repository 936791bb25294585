package parser

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadRows(t *testing.T) {
	// Create a temporary Excel file for testing
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"
	// Set some test data
	f.SetCellValue(sheetName, "A1", "Header1")
	f.SetCellValue(sheetName, "B1", "Header2")
	f.SetCellValue(sheetName, "C1", "Header3")
	f.SetCellValue(sheetName, "A2", 100)
	f.SetCellValue(sheetName, "B2", 200.5)
	f.SetCellValue(sheetName, "A3", "Text")

	// Save to temp file
	tmpFile := filepath.Join(t.TempDir(), "test.xlsx")
	if err := f.SaveAs(tmpFile); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	// Open and flatten
	f2, err := excelize.OpenFile(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open test file: %v", err)
	}
	defer f2.Close()

	rows, err := ReadRows(f2, sheetName)
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 3 {
			t.Errorf("Row %d: expected 3 columns, got %d", i, len(row))
		}
	}

	if rows[0][0] != "Header1" {
		t.Errorf("Expected 'Header1', got %v", rows[0][0])
	}

	// Check numeric values
	if rows[1][0] != int64(100) {
		t.Errorf("Expected int64(100), got %v (type: %T)", rows[1][0], rows[1][0])
	}
	if rows[1][1] != 200.5 {
		t.Errorf("Expected 200.5, got %v", rows[1][1])
	}

	// Padding cells are nil
	if rows[1][2] != nil {
		t.Errorf("Expected nil padding, got %v", rows[1][2])
	}
	if rows[2][1] != nil || rows[2][2] != nil {
		t.Errorf("Expected nil padding in row 3, got %v", rows[2])
	}
}

func TestReadRowsKeepsTextCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"
	texts := map[string]string{
		"A1": "SKU", "B1": "Code",
		"A2": "1.50", "B2": "12E3",
		"A3": "12345678901234567890", "B3": "-0",
	}
	for cell, text := range texts {
		if err := f.SetCellStr(sheetName, cell, text); err != nil {
			t.Fatalf("SetCellStr(%s) failed: %v", cell, err)
		}
	}
	f.SetCellValue(sheetName, "C2", 1.5)
	f.SetCellBool(sheetName, "C3", true)

	tmpFile := filepath.Join(t.TempDir(), "text.xlsx")
	if err := f.SaveAs(tmpFile); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}
	f2, err := excelize.OpenFile(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open test file: %v", err)
	}
	defer f2.Close()

	for name, read := range map[string]func(*excelize.File, string) ([][]interface{}, error){
		"ReadRows":  ReadRows,
		"BasicRows": BasicRows,
	} {
		rows, err := read(f2, sheetName)
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		for cell, text := range texts {
			col, row, _ := excelize.CellNameToCoordinates(cell)
			if got := rows[row-1][col-1]; got != text {
				t.Errorf("%s %s = %v (type: %T), expected text %q", name, cell, got, got, text)
			}
		}
		if rows[1][2] != 1.5 {
			t.Errorf("%s C2 = %v (type: %T), expected 1.5", name, rows[1][2], rows[1][2])
		}
		if rows[2][2] != true {
			t.Errorf("%s C3 = %v (type: %T), expected true", name, rows[2][2], rows[2][2])
		}
	}
}

func TestResolveRowsTypesByFormulaResult(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "Code")
	if err := f.SetCellFormula("Sheet1", "A2", `"0"&"12"`); err != nil {
		t.Fatalf("SetCellFormula failed: %v", err)
	}
	if err := f.SetCellFormula("Sheet1", "A3", "6*2"); err != nil {
		t.Fatalf("SetCellFormula failed: %v", err)
	}

	formulas := []FormulaCell{
		{Cell: "A2", Formula: `"0"&"12"`, Type: "str"},
		{Cell: "A3", Formula: "6*2"},
	}
	rows, err := ResolveRows(f, "Sheet1", formulas)
	if err != nil {
		t.Fatalf("ResolveRows failed: %v", err)
	}
	if rows[1][0] != "012" {
		t.Errorf("Expected text '012', got %v (type: %T)", rows[1][0], rows[1][0])
	}
	if rows[2][0] != int64(12) {
		t.Errorf("Expected int64(12), got %v (type: %T)", rows[2][0], rows[2][0])
	}
}

func TestReadRowsHeaderOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "SKU")
	f.SetCellValue("Sheet1", "B1", "Variant Price")

	rows, err := ReadRows(f, "Sheet1")
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected header row only, got %d rows", len(rows))
	}
	if rows[0][1] != "Variant Price" {
		t.Errorf("Expected 'Variant Price', got %v", rows[0][1])
	}
}

func TestReadRowsEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows, err := ReadRows(f, "Sheet1")
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if rows != nil {
		t.Errorf("Expected nil grid for empty sheet, got %v", rows)
	}
}

func TestReadRowsMissingSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := ReadRows(f, "Export"); err == nil {
		t.Error("Expected error for missing sheet")
	}
}

func TestResolveRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet("Prices"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	f.SetCellValue("Prices", "D4", 15)
	f.SetCellValue("Sheet1", "A1", "SKU")
	f.SetCellValue("Sheet1", "B1", "Variant Price")
	f.SetCellValue("Sheet1", "A2", "widget")
	if err := f.SetCellFormula("Sheet1", "B2", "Prices!D4*2"); err != nil {
		t.Fatalf("SetCellFormula failed: %v", err)
	}

	formulas := []FormulaCell{{Cell: "B2", Formula: "Prices!D4*2"}}
	rows, err := ResolveRows(f, "Sheet1", formulas)
	if err != nil {
		t.Fatalf("ResolveRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[1][1] != int64(30) {
		t.Errorf("Expected int64(30), got %v (type: %T)", rows[1][1], rows[1][1])
	}
}

func TestResolveRowsKeepsUnresolvable(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "Header")
	formulas := []FormulaCell{{Cell: "not-a-cell"}, {Cell: "A2", Formula: ""}}
	rows, err := ResolveRows(f, "Sheet1", formulas)
	if err != nil {
		t.Fatalf("ResolveRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected header row only, got %d rows", len(rows))
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"123", int64(123)},
		{"123.45", 123.45},
		{"-100", int64(-100)},
		{"0", int64(0)},
		{"0.5", 0.5},
		{"1E+20", 1e20},
		{"hello", "hello"},
		{"", ""},
		{"007", "007"},
		{"0x10", "0x10"},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"-", "-"},
		{"1,000", "1,000"},
	}

	for _, tt := range tests {
		result := parseValue(tt.input)
		if result != tt.expected {
			t.Errorf("parseValue(%q) = %v (type: %T), expected %v (type: %T)",
				tt.input, result, result, tt.expected, tt.expected)
		}
	}
}

func TestDataBounds(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want Bounds
	}{
		{"empty", nil, Bounds{-1, -1, -1, -1}},
		{"blank cells", [][]string{{"", ""}, {""}}, Bounds{-1, -1, -1, -1}},
		{"single", [][]string{{"a"}}, Bounds{0, 0, 0, 0}},
		{"ragged", [][]string{{"", "a"}, {"b", "", "", "c"}, {""}}, Bounds{0, 1, 0, 3}},
	}

	for _, tt := range tests {
		got := DataBounds(tt.rows)
		if got != tt.want {
			t.Errorf("%s: DataBounds() = %+v, expected %+v", tt.name, got, tt.want)
		}
	}
}
