package comments

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

// Handler exposes project and task comment threads as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers comment routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects/{projectID}/comments", h.listByProject)
	r.Post("/projects/{projectID}/comments", h.add)
	r.Get("/tasks/{taskID}/comments", h.listByTask)
	r.Delete("/comments/{id}", h.remove)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	var req struct {
		TaskID string `json:"task_id" validate:"omitempty,uuid"`
		Body   string `json:"body" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	var taskID *uuid.UUID
	if req.TaskID != "" {
		id := uuid.MustParse(req.TaskID)
		taskID = &id
	}

	comment, err := h.service.Add(r.Context(), shared.IdentityFromContext(r.Context()), projectID, taskID, req.Body)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (h *Handler) listByProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	comments, err := h.service.ListByProject(r.Context(), shared.IdentityFromContext(r.Context()), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handler) listByTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	comments, err := h.service.ListByTask(r.Context(), shared.IdentityFromContext(r.Context()), taskID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.Remove(r.Context(), shared.IdentityFromContext(r.Context()), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("comment request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
