package pricedit

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fixtureCell is a cell of a hand-assembled workbook. Formula cells keep
// whatever cached value the test puts next to them, which excelize's
// writers cannot produce.
type fixtureCell struct {
	ref     string
	value   string
	formula string
	text    bool
}

type fixtureSheet struct {
	name  string
	cells []fixtureCell
}

func num(ref string, v float64) fixtureCell {
	return fixtureCell{ref: ref, value: fmt.Sprint(v)}
}

func str(ref, s string) fixtureCell {
	return fixtureCell{ref: ref, value: s, text: true}
}

func formula(ref, f, cached string) fixtureCell {
	return fixtureCell{ref: ref, value: cached, formula: f}
}

func sheet(name string, cells ...fixtureCell) fixtureSheet {
	return fixtureSheet{name: name, cells: cells}
}

// buildWorkbook assembles a minimal xlsx package.
func buildWorkbook(t *testing.T, sheets ...fixtureSheet) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	var overrides, sheetEntries, rels strings.Builder
	for i, s := range sheets {
		n := i + 1
		fmt.Fprintf(&overrides, `<Override PartName="/xl/worksheets/sheet%d.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`, n)
		fmt.Fprintf(&sheetEntries, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, escape(s.name), n, n)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet%d.xml"/>`, n, n)
	}

	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>`+
		overrides.String()+`</Types>`)
	write("_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`)
	write("xl/workbook.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets>`+sheetEntries.String()+`</sheets></workbook>`)
	write("xl/_rels/workbook.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		rels.String()+`</Relationships>`)
	for i, s := range sheets {
		write(fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1), sheetXML(t, s.cells))
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sheetXML(t *testing.T, cells []fixtureCell) string {
	t.Helper()

	type placed struct {
		row, col int
		cell     fixtureCell
	}
	var all []placed
	for _, c := range cells {
		col, row, err := excelize.CellNameToCoordinates(c.ref)
		require.NoError(t, err)
		all = append(all, placed{row: row, col: col, cell: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].row != all[j].row {
			return all[i].row < all[j].row
		}
		return all[i].col < all[j].col
	})

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	currentRow := 0
	for _, p := range all {
		if p.row != currentRow {
			if currentRow != 0 {
				b.WriteString(`</row>`)
			}
			fmt.Fprintf(&b, `<row r="%d">`, p.row)
			currentRow = p.row
		}
		c := p.cell
		switch {
		case c.formula != "":
			fmt.Fprintf(&b, `<c r="%s"><f>%s</f>`, c.ref, escape(c.formula))
			if c.value != "" {
				fmt.Fprintf(&b, `<v>%s</v>`, escape(c.value))
			}
			b.WriteString(`</c>`)
		case c.text:
			fmt.Fprintf(&b, `<c r="%s" t="inlineStr"><is><t>%s</t></is></c>`, c.ref, escape(c.value))
		default:
			fmt.Fprintf(&b, `<c r="%s"><v>%s</v></c>`, c.ref, c.value)
		}
	}
	if currentRow != 0 {
		b.WriteString(`</row>`)
	}
	b.WriteString(`</sheetData></worksheet>`)
	return b.String()
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// pricesSheet is the Prices sheet of the reference scenario.
func pricesSheet() fixtureSheet {
	return sheet(PricesSheet,
		str("C4", "Price 1"), num("D4", 10),
		str("C5", "Price 2"), num("D5", 20),
		str("C6", "Price 3"), num("D6", 30),
		str("C7", "Price 4"), num("D7", 40),
	)
}

// scenarioWorkbook opens the reference workbook: Export!B2 = Prices!D4*2
// with cached value cached ("" for none).
func scenarioWorkbook(t *testing.T, cached string) *Workbook {
	t.Helper()

	data := buildWorkbook(t,
		pricesSheet(),
		sheet(ExportSheet,
			str("A1", "SKU"), str("B1", "Variant Price"),
			str("A2", "widget"), formula("B2", "Prices!D4*2", cached),
		),
	)
	wb, err := OpenBytes(data)
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })
	return wb
}
