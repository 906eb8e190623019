package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/platform/httputil"
	"healthexchange/pkg/requestcontext"
)

// Service is the emergency override operation.
type Service interface {
	Share(ctx context.Context, patient id.ShortID, recipientShortID id.ShortID) error
}

type Handler struct {
	logger    *slog.Logger
	emergency Service
}

func New(emergency Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, emergency: emergency}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/patients/{shortID}/emergency-share", h.handleShare)
}

type shareRequest struct {
	RecipientShortID int32 `json:"recipient_short_id"`
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patient, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	recipient, err := id.NewShortID(req.RecipientShortID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.emergency.Share(ctx, patient, recipient); err != nil {
		h.logger.WarnContext(ctx, "emergency share rejected",
			"request_id", requestcontext.RequestID(ctx),
			"patient", patient,
			"recipient", recipient,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
