package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"healthexchange/internal/identity/models"
	"healthexchange/internal/identity/service"
	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
	"healthexchange/pkg/platform/httputil"
	"healthexchange/pkg/platform/middleware/metadata"
	"healthexchange/pkg/requestcontext"
)

// Service is the registry surface the handlers call.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.User, error)
	VerifyCredential(ctx context.Context, shortID id.ShortID, credential string) (*models.User, error)
	Lookup(ctx context.Context, principal id.Principal) (*models.User, error)
	LookupByShortID(ctx context.Context, shortID id.ShortID) (*models.User, error)
}

// TokenIssuer mints access tokens after registration and login.
type TokenIssuer interface {
	Generate(principal id.Principal, role id.Role) (string, error)
}

type Handler struct {
	logger   *slog.Logger
	identity Service
	tokens   TokenIssuer
}

func New(identity Service, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, identity: identity, tokens: tokens}
}

// RegisterPublic mounts the unauthenticated endpoints: registration and login.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/users", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterProtected mounts endpoints that require an authenticated principal.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Get("/users/{shortID}", h.handleDirectoryLookup)
}

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Location   string `json:"location"`
	ShortID    int32  `json:"short_id"`
	Role       string `json:"role"`
	Credential string `json:"credential"`
}

type authResponse struct {
	Token string             `json:"token"`
	User  *models.PublicUser `json:"user"`
}

// handleRegister creates the identity record and issues the first token. The
// principal is minted here: clients never choose their own.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	shortID, err := id.NewShortID(req.ShortID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	principal := id.NewPrincipal()
	ctx = requestcontext.WithPrincipal(ctx, principal)

	user, err := h.identity.Register(ctx, service.RegisterRequest{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		ShortID:    shortID,
		Location:   req.Location,
		Credential: req.Credential,
		Role:       role,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"short_id", shortID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.Generate(user.Principal, user.Role)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token after registration", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	public := user.Public()
	httputil.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: &public})
}

type loginRequest struct {
	ShortID    int32  `json:"short_id"`
	Credential string `json:"credential"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	shortID, err := id.NewShortID(req.ShortID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.identity.VerifyCredential(ctx, shortID, req.Credential)
	if err != nil {
		device := metadata.GetDevice(ctx)
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"short_id", shortID,
			"client_ip", metadata.GetClientIP(ctx),
			"client_os", device.OS,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.Generate(user.Principal, user.Role)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", "error", err.Error())
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	public := user.Public()
	httputil.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: &public})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.identity.Lookup(ctx, requestcontext.Principal(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.Public())
}

// handleDirectoryLookup resolves a short id to its public directory entry so
// patients can confirm who they are about to grant access to.
func (h *Handler) handleDirectoryLookup(w http.ResponseWriter, r *http.Request) {
	shortID, err := id.ParseShortID(chi.URLParam(r, "shortID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.identity.LookupByShortID(r.Context(), shortID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.Public())
}
