package documents

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studioops/studioops/internal/platform/httpx"
	"github.com/studioops/studioops/internal/shared"
)

// Handler exposes document management as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers document routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects/{projectID}/documents", h.list)
	r.Post("/projects/{projectID}/documents", h.registerUpload)
	r.Get("/documents/{id}/download", h.download)
	r.Delete("/documents/{id}", h.remove)
}

type uploadRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes" validate:"gte=0"`
}

func (h *Handler) registerUpload(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	var req uploadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	ticket, err := h.service.RegisterUpload(r.Context(), identity, projectID, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ticket)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	url, expires, err := h.service.DownloadURL(r.Context(), identity.TenantID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"download_url": url, "expires_at": expires})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	projectID, ok := h.pathUUID(w, r, "projectID")
	if !ok {
		return
	}
	docs, err := h.service.ListByProject(r.Context(), identity.TenantID, projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Remove(r.Context(), identity.TenantID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireStaff(w http.ResponseWriter, r *http.Request) (*shared.Identity, bool) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil || identity.TenantID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	if identity.Role == shared.RoleClient {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return identity, true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("document request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
