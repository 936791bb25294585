package pricedit

import (
	"errors"
	"fmt"
)

// ErrFileNotFound indicates the input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidFormat indicates the input is not a readable xlsx document.
var ErrInvalidFormat = errors.New("invalid xlsx format")

// ErrSheetMissing indicates a required sheet is absent from the workbook.
var ErrSheetMissing = errors.New("sheet not found")

// LoadError is returned when a workbook cannot be opened.
type LoadError struct {
	Source string // file path, or "upload" for byte sources
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load workbook %q: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SheetMissingError is returned when an operation targets a sheet the workbook does not have.
type SheetMissingError struct {
	SheetName string
}

func (e *SheetMissingError) Error() string {
	return fmt.Sprintf("sheet %q not found", e.SheetName)
}

func (e *SheetMissingError) Unwrap() error {
	return ErrSheetMissing
}

// WriteError is returned when a cell write fails after the target sheet was found.
type WriteError struct {
	SheetName string
	Cell      string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s!%s: %v", e.SheetName, e.Cell, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SaveError is returned when the workbook cannot be written to its destination.
type SaveError struct {
	Destination string
	Err         error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save workbook to %q: %v", e.Destination, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// ExportError is returned when every export tier, including the basic fallback, failed.
type ExportError struct {
	SheetName string
	Stage     string // "persist", "basic"
	Err       error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export sheet %q (%s): %v", e.SheetName, e.Stage, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(sheetName, stage string, err error) *ExportError {
	return &ExportError{
		SheetName: sheetName,
		Stage:     stage,
		Err:       err,
	}
}
