package ledger

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

// Handler wires JSON endpoints for accounts, entries, categories and tags.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	bump     func(r *http.Request)
}

// NewHandler constructs a Handler. onMutate may be nil; when set it runs
// after every successful mutation (dashboard cache invalidation).
func NewHandler(logger *slog.Logger, service *Service, onMutate func(r *http.Request)) *Handler {
	if onMutate == nil {
		onMutate = func(*http.Request) {}
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		bump:     onMutate,
	}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Post("/accounts", h.createAccount)
	r.Get("/accounts/{id}", h.getAccount)
	r.Patch("/accounts/{id}", h.renameAccount)

	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Get("/tags", h.listTags)
	r.Post("/tags", h.createTag)

	r.Route("/incomes", func(r chi.Router) {
		h.mountEntryRoutes(r, KindIncome)
	})
	r.Route("/expenditures", func(r chi.Router) {
		h.mountEntryRoutes(r, KindExpenditure)
	})
}

func (h *Handler) mountEntryRoutes(r chi.Router, kind Kind) {
	r.Get("/", h.listEntries(kind))
	r.Post("/", h.createEntry(kind))
	r.Get("/{id}", h.getEntry(kind))
	r.Put("/{id}", h.updateEntry(kind))
	r.Delete("/{id}", h.deleteEntry(kind))
}

type entryRequest struct {
	AccountID   string    `json:"account_id" validate:"required,uuid"`
	Amount      string    `json:"amount" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	CategoryID  string    `json:"category_id" validate:"omitempty,uuid"`
	EmployeeID  string    `json:"employee_id" validate:"omitempty,uuid"`
	TagIDs      []string  `json:"tag_ids" validate:"omitempty,dive,uuid"`
}

func (req entryRequest) toInput() (EntryInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return EntryInput{}, err
	}
	in := EntryInput{
		AccountID:   uuid.MustParse(req.AccountID),
		Amount:      amount,
		Description: req.Description,
		Date:        req.Date,
	}
	if req.CategoryID != "" {
		id := uuid.MustParse(req.CategoryID)
		in.CategoryID = &id
	}
	if req.EmployeeID != "" {
		id := uuid.MustParse(req.EmployeeID)
		in.EmployeeID = &id
	}
	for _, raw := range req.TagIDs {
		in.TagIDs = append(in.TagIDs, uuid.MustParse(raw))
	}
	return in, nil
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (EntryInput, bool) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return EntryInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return EntryInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal number")
		return EntryInput{}, false
	}
	return in, true
}

func (h *Handler) createEntry(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := h.tenant(w, r)
		if !ok {
			return
		}
		in, ok := h.decodeEntry(w, r)
		if !ok {
			return
		}
		entry, err := h.service.CreateEntry(r.Context(), tenantID, kind, in)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.bump(r)
		httpx.JSON(w, http.StatusCreated, entry)
	}
}

func (h *Handler) updateEntry(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := h.tenant(w, r)
		if !ok {
			return
		}
		entryID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
			return
		}
		in, ok := h.decodeEntry(w, r)
		if !ok {
			return
		}
		entry, err := h.service.UpdateEntry(r.Context(), tenantID, kind, entryID, in)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.bump(r)
		httpx.JSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) deleteEntry(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := h.tenant(w, r)
		if !ok {
			return
		}
		entryID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
			return
		}
		if err := h.service.DeleteEntry(r.Context(), tenantID, kind, entryID); err != nil {
			h.respondError(w, r, err)
			return
		}
		h.bump(r)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) getEntry(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := h.tenant(w, r)
		if !ok {
			return
		}
		entryID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
			return
		}
		entry, err := h.service.GetEntry(r.Context(), tenantID, kind, entryID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) listEntries(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := h.tenant(w, r)
		if !ok {
			return
		}
		filter := ListFilter{}
		if raw := r.URL.Query().Get("from"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				filter.From = t
			}
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				filter.To = t
			}
		}
		if raw := r.URL.Query().Get("account_id"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				filter.AccountID = id
			}
		}
		entries, err := h.service.ListEntries(r.Context(), tenantID, kind, filter)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entries)
	}
}

type accountRequest struct {
	Name           string `json:"name" validate:"required"`
	OpeningBalance string `json:"opening_balance" validate:"omitempty"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	balance := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		if balance, err = decimal.NewFromString(req.OpeningBalance); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "opening balance must be a decimal number")
			return
		}
	}
	account, err := h.service.CreateAccount(r.Context(), tenantID, req.Name, balance)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) renameAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	account, err := h.service.RenameAccount(r.Context(), tenantID, accountID, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.service.GetAccount(r.Context(), tenantID, accountID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	kind := KindExpenditure
	if r.URL.Query().Get("kind") == string(KindIncome) {
		kind = KindIncome
	}
	categories, err := h.service.ListCategories(r.Context(), tenantID, kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind  string `json:"kind" validate:"required,oneof=INCOME EXPENDITURE"`
		Name  string `json:"name" validate:"required"`
		Color string `json:"color" validate:"omitempty,hexcolor"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.service.CreateCategory(r.Context(), tenantID, Kind(req.Kind), req.Name, req.Color)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	tags, err := h.service.ListTags(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tags)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}
	tag, err := h.service.CreateTag(r.Context(), tenantID, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tag)
}

// tenant resolves the caller's tenant id from the session, rejecting
// anonymous requests. The explicit tenant id is what the service layer scopes
// every query by.
func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil || identity.TenantID == uuid.Nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return uuid.Nil, false
	}
	return identity.TenantID, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	case errors.Is(err, ErrInvalidAccount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Account", "account does not exist")
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrTransactionFailed):
		h.logger.Error("ledger transaction failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrConflict)
	default:
		h.logger.Error("ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
