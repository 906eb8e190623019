package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthexchange/internal/identity/models"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/platform/httputil"
	"healthexchange/pkg/requestcontext"
)

// Service is the consent table surface the handlers call.
type Service interface {
	Grant(ctx context.Context, patient id.ShortID, granteeShortID id.ShortID) error
	Revoke(ctx context.Context, patient id.ShortID, granteeShortID id.ShortID) error
	ListGrantees(ctx context.Context, patient id.ShortID) ([]models.PublicUser, error)
	AccessiblePatients(ctx context.Context) ([]id.ShortID, error)
}

type Handler struct {
	logger *slog.Logger
	access Service
}

func New(access Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, access: access}
}

// Register mounts the consent endpoints. All of them require an
// authenticated principal.
func (h *Handler) Register(r chi.Router) {
	r.Post("/patients/{shortID}/grants", h.handleGrant)
	r.Delete("/patients/{shortID}/grants/{granteeShortID}", h.handleRevoke)
	r.Get("/patients/{shortID}/grants", h.handleListGrantees)
	r.Get("/me/patients", h.handleAccessiblePatients)
}

type grantRequest struct {
	GranteeShortID int32 `json:"grantee_short_id"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	grantee, err := id.NewShortID(req.GranteeShortID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.access.Grant(ctx, patient, grantee); err != nil {
		h.logger.WarnContext(ctx, "grant rejected",
			"request_id", requestcontext.RequestID(ctx),
			"patient", patient,
			"grantee", grantee,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	grantee, err := id.ParseShortID(chi.URLParam(r, "granteeShortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.access.Revoke(ctx, patient, grantee); err != nil {
		h.logger.WarnContext(ctx, "revoke rejected",
			"request_id", requestcontext.RequestID(ctx),
			"patient", patient,
			"grantee", grantee,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListGrantees(w http.ResponseWriter, r *http.Request) {
	patient, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	grantees, err := h.access.ListGrantees(r.Context(), patient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if grantees == nil {
		grantees = []models.PublicUser{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"grantees": grantees})
}

// handleAccessiblePatients lists the short ids of every patient the calling
// grantee can currently read.
func (h *Handler) handleAccessiblePatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.access.AccessiblePatients(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if patients == nil {
		patients = []id.ShortID{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"patients": patients})
}
