package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studioops/studioops/internal/ledger"
	"github.com/studioops/studioops/internal/platform/httpx"
	"github.com/studioops/studioops/internal/shared"
)

// Handler exposes the dashboard rollups as JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the dashboard endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/trend", h.monthlyTrend)
		r.Get("/cash-flow", h.cashFlow)
		r.Get("/categories", h.categoryBreakdown)
	})
}

func (h *Handler) monthlyTrend(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.MonthlyTrend(r.Context(), h.tenant(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"trend": points})
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.CashFlow(r.Context(), h.tenant(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cashFlow": points})
}

func (h *Handler) categoryBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.CategoryBreakdown(r.Context(), h.tenant(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": breakdown})
}

func (h *Handler) tenant(r *http.Request) uuid.UUID {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		return uuid.Nil
	}
	return identity.TenantID
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	default:
		h.logger.Error("dashboard query failed", "error", err, "path", r.URL.Path)
		httpx.RespondError(w, err)
	}
}
