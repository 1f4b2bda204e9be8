package tasks

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studioops/studioops/internal/platform/httpx"
	"github.com/studioops/studioops/internal/shared"
)

// Handler exposes task management as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers task routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Post("/status", h.setStatus)
			r.Post("/complete", h.complete)
			r.Post("/approve", h.approve)
			r.Post("/reject", h.reject)
			r.Post("/request-changes", h.reject)
			r.Put("/visibility", h.setVisibility)
		})
	})
}

type taskRequest struct {
	ProjectID        string `json:"project_id" validate:"required,uuid"`
	ModuleID         string `json:"module_id" validate:"omitempty,uuid"`
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description"`
	Priority         string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeID       string `json:"assignee_id" validate:"omitempty,uuid"`
	DueDate          string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	RequiresApproval bool   `json:"requires_approval"`
}

func (req taskRequest) toInput() TaskInput {
	input := TaskInput{
		ProjectID:        uuid.MustParse(req.ProjectID),
		Title:            req.Title,
		Description:      req.Description,
		Priority:         Priority(req.Priority),
		RequiresApproval: req.RequiresApproval,
	}
	if req.ModuleID != "" {
		id := uuid.MustParse(req.ModuleID)
		input.ModuleID = &id
	}
	if req.AssigneeID != "" {
		id := uuid.MustParse(req.AssigneeID)
		input.AssigneeID = &id
	}
	if req.DueDate != "" {
		date, _ := time.Parse("2006-01-02", req.DueDate)
		input.DueDate = &date
	}
	return input
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.service.Create(r.Context(), identity.TenantID, req.toInput())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"task": task})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := req.toInput()
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	task, err := h.service.Update(r.Context(), identity.TenantID, id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	task, err := h.service.Get(r.Context(), identity.TenantID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil || identity.TenantID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filter := ListFilter{}
	q := r.URL.Query()
	if raw := q.Get("project_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.ProjectID = &id
		}
	}
	if raw := q.Get("status"); raw != "" {
		status := TaskStatus(raw)
		if validStatus(status) {
			filter.Status = &status
		}
	}
	tasks, err := h.service.List(r.Context(), identity, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), identity.TenantID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" validate:"required,oneof=TODO IN_PROGRESS IN_REVIEW"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.service.SetStatus(r.Context(), identity.TenantID, id, TaskStatus(req.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	task, err := h.service.MarkComplete(r.Context(), identity, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	task, err := h.service.Approve(r.Context(), identity, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	task, err := h.service.Reject(r.Context(), identity, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) setVisibility(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.service.SetVisibility(r.Context(), identity.TenantID, id, req.Visible)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*shared.Identity, bool) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil || identity.TenantID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	if identity.Role != shared.RoleAdmin {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return identity, true
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNotAssignee):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrNotInReview), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("task request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
