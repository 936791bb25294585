package parser

import "github.com/xuri/excelize/v2"

// ProbeStale reports whether the leading rows of a padded grid contain an
// empty cell outside headerCells. An empty cell there is taken as a sign
// that cached formula values are missing or unreliable. Only the first
// limit rows are inspected.
func ProbeStale(rows [][]string, limit int, headerCells []string) bool {
	skip := make(map[string]bool, len(headerCells))
	for _, cell := range headerCells {
		skip[cell] = true
	}

	for r := 0; r < len(rows) && r < limit; r++ {
		for c, value := range rows[r] {
			if value != "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil || skip[name] {
				continue
			}
			return true
		}
	}
	return false
}
