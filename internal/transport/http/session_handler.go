package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/davidluisklein/wire-price-change/internal/apierrors"
	"github.com/davidluisklein/wire-price-change/internal/session"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
	"github.com/davidluisklein/wire-price-change/pkg/pricedit/models"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to disk.
const multipartMemory = 8 << 20

// formOverhead allows for multipart boundaries and part headers on top of
// the file itself.
const formOverhead = 64 << 10

// PricesRequest is the body of PUT /prices. Every cell is required; an
// empty string clears the cell.
type PricesRequest struct {
	D4 *string `json:"D4" validate:"required"`
	D5 *string `json:"D5" validate:"required"`
	D6 *string `json:"D6" validate:"required"`
	D7 *string `json:"D7" validate:"required"`
}

// Values returns the request as a cell to input map.
func (p *PricesRequest) Values() map[string]string {
	return map[string]string{
		"D4": *p.D4,
		"D5": *p.D5,
		"D6": *p.D6,
		"D7": *p.D7,
	}
}

// PreviewResponse is the body of GET /export/preview.
type PreviewResponse struct {
	*models.Preview
	Tier  string      `json:"tier"`
	Stale bool        `json:"stale"`
	Hint  *ColumnHint `json:"hint,omitempty"`
}

// ColumnHint reports how many rows of a named column have a value.
type ColumnHint struct {
	Column string `json:"column"`
	Found  bool   `json:"found"`
	Filled int    `json:"filled"`
	Total  int    `json:"total"`
}

// SessionHandler serves the per-session workbook routes.
type SessionHandler struct {
	sessions       *session.Manager
	exporter       *pricedit.Exporter
	prices         pricesObserver
	validate       *validator.Validate
	logger         *slog.Logger
	exportSheet    string
	previewRows    int
	hintColumn     string
	maxUploadBytes int64
}

type pricesObserver interface {
	PricesUpdated()
}

type nopPricesObserver struct{}

func (nopPricesObserver) PricesUpdated() {}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(deps Deps, logger *slog.Logger) *SessionHandler {
	exporter := deps.Exporter
	if exporter == nil {
		exporter = pricedit.NewExporter(pricedit.NoEngine{}, pricedit.DefaultExportOptions(), logger)
	}
	var prices pricesObserver = nopPricesObserver{}
	if deps.Metrics != nil {
		prices = deps.Metrics
	}
	exportSheet := deps.ExportSheet
	if exportSheet == "" {
		exportSheet = pricedit.ExportSheet
	}
	previewRows := deps.PreviewRows
	if previewRows <= 0 {
		previewRows = 10
	}
	return &SessionHandler{
		sessions:       deps.Sessions,
		exporter:       exporter,
		prices:         prices,
		validate:       validator.New(),
		logger:         logger.With(slog.String("handler", "session")),
		exportSheet:    exportSheet,
		previewRows:    previewRows,
		hintColumn:     deps.HintColumn,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

// Create handles POST /api/sessions. A multipart body with a "file" field
// opens the upload; any other request opens the bundled workbook.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		s   *session.Session
		err error
	)
	if isMultipart(r) {
		s, err = h.openUpload(w, r)
	} else {
		s, err = h.sessions.OpenBundled()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, s.Info())
}

func (h *SessionHandler) openUpload(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, session.ErrUploadTooLarge
		}
		return nil, apierrors.InvalidRequest(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apierrors.InvalidRequest(fmt.Errorf("form field %q: %w", "file", err))
	}
	defer file.Close()
	return h.sessions.OpenUpload(header.Filename, file)
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	infos := make([]session.Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	render.JSON(w, r, infos)
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, s.Info())
}

// Delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Release(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sheets handles GET /api/sessions/{id}/sheets.
func (h *SessionHandler) Sheets(w http.ResponseWriter, r *http.Request) {
	var sheets []models.SheetInfo
	err := h.do(r, func(wb *pricedit.Workbook) error {
		sheets = wb.Sheets(h.exportSheet)
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, sheets)
}

// Prices handles GET /api/sessions/{id}/prices.
func (h *SessionHandler) Prices(w http.ResponseWriter, r *http.Request) {
	var prices *models.PriceSet
	err := h.do(r, func(wb *pricedit.Workbook) error {
		var err error
		prices, err = readPrices(wb)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, prices)
}

// UpdatePrices handles PUT /api/sessions/{id}/prices. The values are
// written, the workbook is saved back to its session file, and the stored
// prices are returned.
func (h *SessionHandler) UpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req PricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, apierrors.InvalidRequest(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.fail(w, r, apierrors.Validation(err))
		return
	}

	var prices *models.PriceSet
	err := h.do(r, func(wb *pricedit.Workbook) error {
		ok, err := pricedit.WritePrices(wb, req.Values())
		if err != nil {
			return err
		}
		if !ok {
			return &pricedit.SheetMissingError{SheetName: pricedit.PricesSheet}
		}
		if err := wb.Save(); err != nil {
			return err
		}
		prices, err = readPrices(wb)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.prices.PricesUpdated()
	h.logger.InfoContext(r.Context(), "Prices updated",
		slog.String("session_id", chi.URLParam(r, "id")))
	render.JSON(w, r, prices)
}

// ExportCSV handles GET /api/sessions/{id}/export.csv.
func (h *SessionHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var (
		data []byte
		snap *models.Snapshot
	)
	err := h.do(r, func(wb *pricedit.Workbook) error {
		var err error
		data, snap, err = h.exporter.ExportCSV(r.Context(), wb, h.sheetParam(r))
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", pricedit.ExportMIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pricedit.ExportFileName))
	w.Header().Set("X-Export-Tier", snap.Tier)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write CSV response",
			slog.String("error", err.Error()))
	}
}

// Preview handles GET /api/sessions/{id}/export/preview?rows=N.
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rows := h.previewRows
	if raw := r.URL.Query().Get("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER",
				"rows must be a non-negative integer", raw))
			return
		}
		rows = n
	}

	var snap *models.Snapshot
	err := h.do(r, func(wb *pricedit.Workbook) error {
		var err error
		snap, err = h.exporter.Snapshot(r.Context(), wb, h.sheetParam(r))
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := PreviewResponse{
		Preview: pricedit.Preview(snap, rows),
		Tier:    snap.Tier,
		Stale:   snap.Stale,
	}
	if h.hintColumn != "" {
		filled, total, found := pricedit.ColumnFill(snap, h.hintColumn)
		resp.Hint = &ColumnHint{Column: h.hintColumn, Found: found, Filled: filled, Total: total}
	}
	render.JSON(w, r, resp)
}

// Diagnostics handles GET /api/sessions/{id}/diagnostics.
func (h *SessionHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	sheet := h.sheetParam(r)
	var refs []models.FormulaRef
	err := h.do(r, func(wb *pricedit.Workbook) error {
		var err error
		refs, err = pricedit.ScanFormulaReferences(wb, sheet)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, pricedit.SummarizeReferences(sheet, refs, pricedit.DefaultDiagnosticsShown))
}

func (h *SessionHandler) session(r *http.Request) (*session.Session, error) {
	return h.sessions.Get(chi.URLParam(r, "id"))
}

func (h *SessionHandler) do(r *http.Request, fn func(wb *pricedit.Workbook) error) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	return s.Do(fn)
}

func (h *SessionHandler) sheetParam(r *http.Request) string {
	if sheet := r.URL.Query().Get("sheet"); sheet != "" {
		return sheet
	}
	return h.exportSheet
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apierrors.Respond(w, r, h.logger, err)
}

// readPrices treats an absent Prices sheet as an error.
func readPrices(wb *pricedit.Workbook) (*models.PriceSet, error) {
	prices, err := pricedit.ReadPrices(wb)
	if err != nil {
		return nil, err
	}
	if prices == nil {
		return nil, &pricedit.SheetMissingError{SheetName: pricedit.PricesSheet}
	}
	return prices, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
