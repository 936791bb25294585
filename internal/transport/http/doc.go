// Package http provides the HTTP operator surface for pricedit: workbook
// sessions, price edits, CSV export, preview and diagnostics, served
// through chi with JSON responses rendered by go-chi/render.
package http
