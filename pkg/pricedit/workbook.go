package pricedit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
)

// uploadSource names byte-sourced workbooks in errors and logs.
const uploadSource = "upload"

// Workbook is an open workbook. It is owned by a single caller and is not
// safe for concurrent use.
type Workbook struct {
	file *excelize.File
	path string
}

// Open opens the workbook at path.
func Open(path string) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Source: path, Err: ErrFileNotFound}
		}
		return nil, &LoadError{Source: path, Err: err}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: fmt.Errorf("%w: %v", ErrInvalidFormat, err)}
	}
	return &Workbook{file: f, path: path}, nil
}

// OpenReader reads a workbook from r, typically an uploaded file.
func OpenReader(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &LoadError{Source: uploadSource, Err: fmt.Errorf("%w: %v", ErrInvalidFormat, err)}
	}
	return &Workbook{file: f}, nil
}

// OpenBytes reads a workbook from an in-memory document.
func OpenBytes(b []byte) (*Workbook, error) {
	return OpenReader(bytes.NewReader(b))
}

// Path returns the file the workbook was opened from, or "" for byte sources.
func (w *Workbook) Path() string {
	return w.path
}

// File exposes the underlying excelize file.
func (w *Workbook) File() *excelize.File {
	return w.file
}

// SheetNames returns the sheet names in document order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// HasSheet reports whether a sheet named name exists. Names match exactly.
func (w *Workbook) HasSheet(name string) bool {
	for _, sheet := range w.file.GetSheetList() {
		if sheet == name {
			return true
		}
	}
	return false
}

// Sheet roles reported by Sheets.
const (
	RolePrices = "prices"
	RoleExport = "export"
	RoleOther  = "other"
)

// Sheets lists the sheets in document order with their role, given the
// name of the sheet that is exported.
func (w *Workbook) Sheets(exportSheet string) []models.SheetInfo {
	names := w.file.GetSheetList()
	out := make([]models.SheetInfo, 0, len(names))
	for _, name := range names {
		role := RoleOther
		switch name {
		case PricesSheet:
			role = RolePrices
		case exportSheet:
			role = RoleExport
		}
		out = append(out, models.SheetInfo{Name: name, Role: role})
	}
	return out
}

// SaveAs writes the workbook to path, replacing any existing file.
// The write is not atomic.
func (w *Workbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return &SaveError{Destination: path, Err: err}
	}
	return nil
}

// Save writes the workbook back to the file it was opened from.
func (w *Workbook) Save() error {
	if w.path == "" {
		return &SaveError{Destination: uploadSource, Err: errors.New("workbook has no source path")}
	}
	return w.SaveAs(w.path)
}

// Write streams the full document to dst.
func (w *Workbook) Write(dst io.Writer) error {
	if err := w.file.Write(dst); err != nil {
		return &SaveError{Destination: "writer", Err: err}
	}
	return nil
}

// Bytes returns the serialized document.
func (w *Workbook) Bytes() ([]byte, error) {
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, &SaveError{Destination: "buffer", Err: err}
	}
	return buf.Bytes(), nil
}

// Close releases the workbook's resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// markForRecalc asks spreadsheet programs to recalculate every formula on
// the next load.
func (w *Workbook) markForRecalc(logger *slog.Logger) {
	mode := "auto"
	fullCalc := true
	if err := w.file.SetCalcProps(&excelize.CalcPropsOptions{
		CalcMode:       &mode,
		FullCalcOnLoad: &fullCalc,
	}); err != nil {
		logger.Warn("Failed to set calculation properties",
			slog.String("error", err.Error()))
	}
}
