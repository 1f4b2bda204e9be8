package directory

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

// Handler exposes the directory as JSON endpoints. All routes are admin-only.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers directory routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.listEmployees)
		r.Post("/", h.createEmployee)
		r.Get("/{id}", h.getEmployee)
		r.Put("/{id}", h.updateEmployee)
		r.Delete("/{id}", h.deactivateEmployee)
	})
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.listClients)
		r.Post("/", h.createClient)
		r.Get("/{id}", h.getClient)
		r.Put("/{id}", h.updateClient)
		r.Delete("/{id}", h.deactivateClient)
	})
}

type employeeRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	Designation string `json:"designation"`
	JoiningDate string `json:"joining_date" validate:"omitempty,datetime=2006-01-02"`
	Salary      string `json:"salary" validate:"omitempty,number"`
	Password    string `json:"password" validate:"omitempty,min=8"`
}

func (req employeeRequest) toInput() (EmployeeInput, error) {
	input := EmployeeInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Designation: req.Designation,
		Password:    req.Password,
		Salary:      decimal.Zero,
	}
	if req.Salary != "" {
		salary, err := decimal.NewFromString(req.Salary)
		if err != nil {
			return input, err
		}
		input.Salary = salary
	}
	if req.JoiningDate != "" {
		date, err := time.Parse("2006-01-02", req.JoiningDate)
		if err != nil {
			return input, err
		}
		input.JoiningDate = &date
	}
	return input, nil
}

type clientRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Password    string `json:"password" validate:"omitempty,min=8"`
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	var req employeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "password is required for new employees")
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	employee, err := h.service.CreateEmployee(r.Context(), tenantID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"employee": employee})
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req employeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	employee, err := h.service.UpdateEmployee(r.Context(), tenantID, id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employee": employee})
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	employee, err := h.service.GetEmployee(r.Context(), tenantID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employee": employee})
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	employees, err := h.service.ListEmployees(r.Context(), tenantID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": employees})
}

func (h *Handler) deactivateEmployee(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateEmployee(r.Context(), tenantID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	var req clientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.CreateClient(r.Context(), tenantID, ClientInput{
		Name: req.Name, Email: req.Email, Phone: req.Phone,
		CompanyName: req.CompanyName, Address: req.Address, Password: req.Password,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"client": client})
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req clientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.UpdateClient(r.Context(), tenantID, id, ClientInput{
		Name: req.Name, Email: req.Email, Phone: req.Phone,
		CompanyName: req.CompanyName, Address: req.Address,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client": client})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), tenantID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client": client})
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	clients, err := h.service.ListClients(r.Context(), tenantID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (h *Handler) deactivateClient(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminTenant(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateClient(r.Context(), tenantID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil || identity.TenantID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return uuid.Nil, false
	}
	if identity.Role != shared.RoleAdmin {
		httpx.RespondError(w, httpx.ErrForbidden)
		return uuid.Nil, false
	}
	return identity.TenantID, true
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
	case errors.Is(err, ErrDuplicateEmail):
		httpx.Problem(w, http.StatusConflict, "Duplicate Email", "the email address is already in use")
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("directory request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
