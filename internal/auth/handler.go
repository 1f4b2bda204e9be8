package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/studioops/studioops/internal/platform/httpx"
	"github.com/studioops/studioops/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
	r.Post("/auth/magic-link", h.handleIssueMagicLink)
	r.Post("/auth/magic-link/consume", h.handleConsumeMagicLink)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	principal, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "email or password is incorrect")
			return
		}
		h.logger.Error("login failed", "error", err)
		httpx.RespondError(w, err)
		return
	}

	h.establishSession(w, r, principal)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
		if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
			h.logger.Warn("destroy session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"identity": identity})
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleIssueMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	link, err := h.service.IssueMagicLink(r.Context(), req.Email)
	if err != nil {
		// Do not reveal whether the address exists.
		if errors.Is(err, shared.ErrNotFound) {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		h.logger.Error("issue magic link", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"link": link})
}

type consumeMagicLinkRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) handleConsumeMagicLink(w http.ResponseWriter, r *http.Request) {
	var req consumeMagicLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	principal, err := h.service.ConsumeMagicLink(r.Context(), req.Token)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Invalid Link", "the link is invalid or has expired")
		return
	}

	h.establishSession(w, r, principal)
}

func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, principal *Principal) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session unavailable"))
		return
	}
	identity := h.service.Identity(principal)
	sess.SetIdentity(identity)
	if err := h.sessionManager.Commit(r.Context(), w, sess); err != nil {
		h.logger.Error("commit session", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"identity": identity})
}
