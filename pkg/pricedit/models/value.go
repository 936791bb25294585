// Package models defines data structures for price editing and export.
package models

import "strconv"

// FormatValue renders a cell value the way it is shown to the operator
// and written to CSV. Nil renders as the empty string.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}
