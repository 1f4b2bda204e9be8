package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/studioops/studioops/internal/platform/httpx"
	"github.com/studioops/studioops/internal/shared"
)

// Handler exposes project management as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers project routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Get("/team", h.listTeam)
			r.Post("/team", h.assign)
			r.Delete("/team/{employeeID}", h.unassign)
			r.Get("/modules", h.listModules)
			r.Post("/modules", h.addModule)
			r.Put("/modules/{moduleID}", h.renameModule)
			r.Delete("/modules/{moduleID}", h.removeModule)
			r.Post("/modules/reorder", h.reorderModules)
			r.Get("/logs", h.listLogs)
			r.Post("/logs", h.recordLog)
		})
	})
}

type projectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	ClientID    string `json:"client_id" validate:"omitempty,uuid"`
	Status      string `json:"status" validate:"omitempty,oneof=PLANNING IN_PROGRESS ON_HOLD COMPLETED"`
	StartDate   string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Deadline    string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Budget      string `json:"budget" validate:"omitempty,number"`
}

func (req projectRequest) toInput() (ProjectInput, error) {
	input := ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      Status(req.Status),
		Budget:      decimal.Zero,
	}
	if req.ClientID != "" {
		id := uuid.MustParse(req.ClientID)
		input.ClientID = &id
	}
	if req.Budget != "" {
		budget, err := decimal.NewFromString(req.Budget)
		if err != nil {
			return input, err
		}
		input.Budget = budget
	}
	if req.StartDate != "" {
		date, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return input, err
		}
		input.StartDate = &date
	}
	if req.Deadline != "" {
		date, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			return input, err
		}
		input.Deadline = &date
	}
	return input, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	var req projectRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	project, err := h.service.CreateProject(r.Context(), identity.TenantID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"project": project})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req projectRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	if input.Status == "" {
		input.Status = StatusPlanning
	}
	project, err := h.service.UpdateProject(r.Context(), identity.TenantID, id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	project, err := h.service.GetProject(r.Context(), identity, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	projects, err := h.service.ListProjects(r.Context(), identity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteProject(r.Context(), identity.TenantID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	EmployeeID string `json:"employee_id" validate:"required,uuid"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AssignEmployee(r.Context(), identity.TenantID, projectID, uuid.MustParse(req.EmployeeID)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	employeeID, ok := h.pathUUID(w, r, "employeeID")
	if !ok {
		return
	}
	if err := h.service.UnassignEmployee(r.Context(), identity.TenantID, projectID, employeeID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTeam(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	ids, err := h.service.TeamMemberIDs(r.Context(), identity.TenantID, projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employee_ids": ids})
}

type moduleRequest struct {
	Name     string `json:"name" validate:"required"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
}

func (h *Handler) addModule(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req moduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	var parentID *uuid.UUID
	if req.ParentID != "" {
		id := uuid.MustParse(req.ParentID)
		parentID = &id
	}
	module, err := h.service.AddModule(r.Context(), identity.TenantID, projectID, parentID, req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"module": module})
}

func (h *Handler) renameModule(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	moduleID, ok := h.pathUUID(w, r, "moduleID")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RenameModule(r.Context(), identity.TenantID, projectID, moduleID, req.Name); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeModule(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	moduleID, ok := h.pathUUID(w, r, "moduleID")
	if !ok {
		return
	}
	if err := h.service.RemoveModule(r.Context(), identity.TenantID, projectID, moduleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	modules, err := h.service.ListModules(r.Context(), identity.TenantID, projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": modules})
}

type reorderRequest struct {
	ParentID   string   `json:"parent_id" validate:"omitempty,uuid"`
	OrderedIDs []string `json:"ordered_ids" validate:"required,min=1,dive,uuid"`
}

func (h *Handler) reorderModules(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireRole(w, r, shared.RoleAdmin)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if !h.decode(w, r, &req) {
		return
	}
	var parentID *uuid.UUID
	if req.ParentID != "" {
		id := uuid.MustParse(req.ParentID)
		parentID = &id
	}
	ordered := make([]uuid.UUID, len(req.OrderedIDs))
	for i, raw := range req.OrderedIDs {
		ordered[i] = uuid.MustParse(raw)
	}
	if err := h.service.ReorderModules(r.Context(), identity.TenantID, projectID, parentID, ordered); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dailyLogRequest struct {
	EmployeeID  string `json:"employee_id" validate:"omitempty,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"required"`
	Hours       string `json:"hours" validate:"omitempty,number"`
}

func (h *Handler) recordLog(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dailyLogRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := DailyLogInput{ProjectID: projectID, Description: req.Description, Hours: decimal.Zero}
	input.Date, _ = time.Parse("2006-01-02", req.Date)
	if req.EmployeeID != "" {
		input.EmployeeID = uuid.MustParse(req.EmployeeID)
	}
	if req.Hours != "" {
		hours, err := decimal.NewFromString(req.Hours)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
			return
		}
		input.Hours = hours
	}

	log, err := h.service.RecordDailyLog(r.Context(), identity, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"log": log})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireStaff(w, r)
	if !ok {
		return
	}
	projectID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			from = &t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			to = &t
		}
	}
	logs, err := h.service.ListDailyLogs(r.Context(), identity.TenantID, projectID, from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, role shared.Role) (*shared.Identity, bool) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil || identity.TenantID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	if identity.Role != role {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return identity, true
}

// requireStaff admits admins and employees but not clients.
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
	case errors.Is(err, ErrReorderMismatch), errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("project request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
