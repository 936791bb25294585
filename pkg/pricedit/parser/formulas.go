package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// FormulaCell is a cell carrying a formula element in the sheet XML.
type FormulaCell struct {
	// Cell is the cell reference, e.g. "B2".
	Cell string
	// Formula is the raw formula text. It is empty for cells that
	// reuse a shared formula defined elsewhere.
	Formula string
	// Cached is the cached value stored next to the formula.
	Cached string
	// Type is the cell type attribute ("" for numbers, "str", "b", "e").
	Type string
}

// ScanFormulaCells walks the worksheet XML of sheetName inside an xlsx
// package and returns every formula cell in document order.
func ScanFormulaCells(xlsx []byte, sheetName string) ([]FormulaCell, error) {
	r, err := zip.NewReader(bytes.NewReader(xlsx), int64(len(xlsx)))
	if err != nil {
		return nil, err
	}

	parts, err := sheetPartMap(r)
	if err != nil {
		return nil, err
	}
	partPath, ok := parts[sheetName]
	if !ok {
		return nil, fmt.Errorf("no worksheet part for sheet %q", sheetName)
	}

	sheetXML, err := readZipFile(r, partPath)
	if err != nil {
		return nil, err
	}
	if sheetXML == nil {
		return nil, fmt.Errorf("missing part %s", partPath)
	}

	cells, err := parseSheetFormulas(sheetXML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", partPath, err)
	}
	return cells, nil
}

// parseSheetFormulas returns formula cells from worksheet XML content.
func parseSheetFormulas(data []byte) ([]FormulaCell, error) {
	var result []FormulaCell

	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if se, ok := token.(xml.StartElement); ok && se.Name.Local == "c" {
			fc, ok, err := parseCellElement(decoder, se)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, fc)
			}
		}
	}

	return result, nil
}

// parseCellElement consumes a <c> element and reports whether it holds a formula.
func parseCellElement(decoder *xml.Decoder, start xml.StartElement) (FormulaCell, bool, error) {
	var fc FormulaCell
	hasFormula := false
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "r":
			fc.Cell = attr.Value
		case "t":
			fc.Type = attr.Value
		}
	}

	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return fc, false, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "f":
				hasFormula = true
				fc.Formula, err = readElementText(decoder)
			case "v", "is":
				fc.Cached, err = readElementText(decoder)
			default:
				depth++
			}
			if err != nil {
				return fc, false, err
			}
		case xml.EndElement:
			depth--
		}
	}

	return fc, hasFormula, nil
}
