package models

// Snapshot is the flattened content of a sheet, header first.
type Snapshot struct {
	// Sheet is the sheet name the snapshot was taken from.
	Sheet string `json:"sheet"`
	// Header is the first row of the sheet.
	Header []interface{} `json:"header"`
	// Rows are the data rows following the header. Every row has len(Header) columns.
	Rows [][]interface{} `json:"rows"`
	// Tier names the strategy that produced the values.
	Tier string `json:"tier"`
	// Stale reports whether the cached values failed the staleness probe.
	Stale bool `json:"stale"`
}

// Width returns the number of columns.
func (s *Snapshot) Width() int {
	return len(s.Header)
}

// Records renders the header and rows as strings for CSV output.
func (s *Snapshot) Records() [][]string {
	records := make([][]string, 0, len(s.Rows)+1)
	if len(s.Header) > 0 {
		records = append(records, formatRow(s.Header))
	}
	for _, row := range s.Rows {
		records = append(records, formatRow(row))
	}
	return records
}

// ColumnIndex returns the index of the header column named name, or -1.
func (s *Snapshot) ColumnIndex(name string) int {
	for i, h := range s.Header {
		if FormatValue(h) == name {
			return i
		}
	}
	return -1
}

func formatRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = FormatValue(v)
	}
	return out
}

// Preview is the head of a snapshot shown to the operator.
type Preview struct {
	Sheet     string          `json:"sheet"`
	Header    []interface{}   `json:"header"`
	Rows      [][]interface{} `json:"rows"`
	Remaining int             `json:"remaining"`
}
