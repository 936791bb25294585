package parser

// Bounds is the bounding box of non-empty cells, 0-based.
// All fields are -1 when the grid holds no data.
type Bounds struct {
	MinRow, MaxRow int
	MinCol, MaxCol int
}

// Empty reports whether the grid held no data.
func (b Bounds) Empty() bool {
	return b.MaxRow < 0
}

// DataBounds finds the bounding box of non-empty cells.
func DataBounds(rows [][]string) Bounds {
	b := Bounds{MinRow: -1, MaxRow: -1, MinCol: -1, MaxCol: -1}

	for rowIdx, row := range rows {
		for colIdx, cell := range row {
			if cell != "" {
				if b.MinRow < 0 || rowIdx < b.MinRow {
					b.MinRow = rowIdx
				}
				if b.MaxRow < 0 || rowIdx > b.MaxRow {
					b.MaxRow = rowIdx
				}
				if b.MinCol < 0 || colIdx < b.MinCol {
					b.MinCol = colIdx
				}
				if b.MaxCol < 0 || colIdx > b.MaxCol {
					b.MaxCol = colIdx
				}
			}
		}
	}

	return b
}
