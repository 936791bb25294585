package models

// PriceSet holds the stored values of the editable price cells.
type PriceSet struct {
	// Sheet is the sheet the values were read from.
	Sheet string `json:"sheet"`
	// Cells lists the cell references in display order.
	Cells []string `json:"cells"`
	// Values maps a cell reference to its stored value.
	// A cell without a stored value maps to nil.
	Values map[string]interface{} `json:"values"`
}

// Get returns the stored value of cell, or nil.
func (p *PriceSet) Get(cell string) interface{} {
	if p == nil {
		return nil
	}
	return p.Values[cell]
}

// Strings renders every value for an editable text field.
func (p *PriceSet) Strings() map[string]string {
	out := make(map[string]string, len(p.Cells))
	for _, cell := range p.Cells {
		out[cell] = FormatValue(p.Values[cell])
	}
	return out
}
