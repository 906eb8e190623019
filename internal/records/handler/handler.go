package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthexchange/internal/records/models"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/platform/httputil"
	"healthexchange/pkg/requestcontext"
)

// Service is the record store surface the handlers call.
type Service interface {
	Upload(ctx context.Context, contentRef, description string) (models.Report, error)
	AddToPatient(ctx context.Context, patient id.ShortID, contentRef, description string) (models.Report, error)
	ViewMine(ctx context.Context) ([]models.Report, error)
	Get(ctx context.Context, patient id.ShortID) ([]models.Report, error)
}

type Handler struct {
	logger  *slog.Logger
	records Service
}

func New(records Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, records: records}
}

// Register mounts the report endpoints. All of them require an authenticated
// principal.
func (h *Handler) Register(r chi.Router) {
	r.Post("/me/reports", h.handleUpload)
	r.Get("/me/reports", h.handleViewMine)
	r.Post("/patients/{shortID}/reports", h.handleAddToPatient)
	r.Get("/patients/{shortID}/reports", h.handleGet)
}

type uploadRequest struct {
	ContentRef  string `json:"content_ref"`
	Description string `json:"description"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	report, err := h.records.Upload(ctx, req.ContentRef, req.Description)
	if err != nil {
		h.logger.WarnContext(ctx, "upload rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleAddToPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	report, err := h.records.AddToPatient(ctx, patient, req.ContentRef, req.Description)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleViewMine(w http.ResponseWriter, r *http.Request) {
	reports, err := h.records.ViewMine(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeReports(w, reports)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	patient, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reports, err := h.records.Get(r.Context(), patient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeReports(w, reports)
}

func writeReports(w http.ResponseWriter, reports []models.Report) {
	if reports == nil {
		reports = []models.Report{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
