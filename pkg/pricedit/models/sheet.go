package models

// SheetInfo names a sheet and the part it plays in a price workbook.
type SheetInfo struct {
	Name string `json:"name"`
	Role string `json:"role"`
}
