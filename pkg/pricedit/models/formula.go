package models

// FormulaRef is a formula cell found by the diagnostics scan.
type FormulaRef struct {
	// Cell is the cell reference, e.g. "B2".
	Cell string `json:"cell"`
	// Formula is the formula text without the leading '='.
	Formula string `json:"formula"`
	// CachedValue is the value last computed by the authoring program.
	CachedValue string `json:"cached_value"`
}

// Diagnostics is a capped listing of formula references for display.
type Diagnostics struct {
	Sheet     string       `json:"sheet"`
	Total     int          `json:"total"`
	Refs      []FormulaRef `json:"refs"`
	Remaining int          `json:"remaining"`
}
