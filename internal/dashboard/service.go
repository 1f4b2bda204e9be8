// Package dashboard computes read-only financial rollups: monthly trends,
// daily cash flow, and category breakdowns. It performs no writes; sums are
// always recomputed from the entries in range.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/studioops/studioops/internal/ledger"
)

// TrendPoint captures one month of income and expense totals.
type TrendPoint struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// CashFlowPoint is one day of the running balance series.
type CashFlowPoint struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Service coordinates rollup queries with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// MonthlyTrend returns income and expense totals for the last twelve calendar
// months, zero-filled for months without entries.
func (s *Service) MonthlyTrend(ctx context.Context, tenantID uuid.UUID) ([]TrendPoint, error) {
	if tenantID == uuid.Nil {
		return nil, ledger.ErrUnauthorized
	}

	end := s.now()
	start := startOfMonth(end).AddDate(0, -11, 0)

	loader := func(ctx context.Context) (any, error) {
		incomes, expenditures, err := s.fetchBoth(ctx, tenantID, start, end)
		if err != nil {
			return nil, err
		}

		points := make([]TrendPoint, 0, 12)
		for month := start; !month.After(end); month = month.AddDate(0, 1, 0) {
			monthEnd := month.AddDate(0, 1, 0).Add(-time.Nanosecond)
			points = append(points, TrendPoint{
				Month:    month.Format("Jan 06"),
				Income:   sumRange(incomes, month, monthEnd),
				Expenses: sumRange(expenditures, month, monthEnd),
			})
		}
		return points, nil
	}

	var points []TrendPoint
	if err := s.cached(ctx, &points, loader, "trend", tenantID.String(), start.Format("2006-01")); err != nil {
		return nil, err
	}
	return points, nil
}

// CashFlow returns the last 30 days of daily totals with a cumulative running
// balance. The starting balance is the current total account balance with the
// in-window deltas backed out, so the series always ends at the live total.
func (s *Service) CashFlow(ctx context.Context, tenantID uuid.UUID) ([]CashFlowPoint, error) {
	if tenantID == uuid.Nil {
		return nil, ledger.ErrUnauthorized
	}

	end := s.now()
	start := end.AddDate(0, 0, -30)

	loader := func(ctx context.Context) (any, error) {
		var incomes, expenditures []EntryPoint
		var total decimal.Decimal
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			incomes, err = s.repo.EntriesInRange(gctx, tenantID, ledger.KindIncome, start, end)
			return err
		})
		g.Go(func() error {
			var err error
			expenditures, err = s.repo.EntriesInRange(gctx, tenantID, ledger.KindExpenditure, start, end)
			return err
		})
		g.Go(func() error {
			var err error
			total, err = s.repo.TotalAccountBalance(gctx, tenantID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		type daily struct {
			income  decimal.Decimal
			expense decimal.Decimal
		}
		days := map[string]*daily{}
		get := func(t time.Time) *daily {
			key := t.Format("2006-01-02")
			d, ok := days[key]
			if !ok {
				d = &daily{income: decimal.Zero, expense: decimal.Zero}
				days[key] = d
			}
			return d
		}
		windowIn, windowOut := decimal.Zero, decimal.Zero
		for _, p := range incomes {
			d := get(p.Date)
			d.income = d.income.Add(p.Amount)
			windowIn = windowIn.Add(p.Amount)
		}
		for _, p := range expenditures {
			d := get(p.Date)
			d.expense = d.expense.Add(p.Amount)
			windowOut = windowOut.Add(p.Amount)
		}

		keys := make([]string, 0, len(days))
		for k := range days {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		running := total.Sub(windowIn).Add(windowOut)
		points := make([]CashFlowPoint, 0, len(keys))
		for _, k := range keys {
			d := days[k]
			running = running.Add(d.income).Sub(d.expense)
			points = append(points, CashFlowPoint{
				Date:    k,
				Balance: running,
				Income:  d.income,
				Expense: d.expense,
			})
		}
		return points, nil
	}

	var points []CashFlowPoint
	if err := s.cached(ctx, &points, loader, "cashflow", tenantID.String(), end.Format("2006-01-02")); err != nil {
		return nil, err
	}
	return points, nil
}

// CategoryBreakdown returns the current month's expenditures grouped by
// category, descending by total.
func (s *Service) CategoryBreakdown(ctx context.Context, tenantID uuid.UUID) ([]CategoryAmount, error) {
	if tenantID == uuid.Nil {
		return nil, ledger.ErrUnauthorized
	}

	monthStart := startOfMonth(s.now())
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	loader := func(ctx context.Context) (any, error) {
		return s.repo.ExpendituresByCategory(ctx, tenantID, monthStart, monthEnd)
	}

	var out []CategoryAmount
	if err := s.cached(ctx, &out, loader, "categories", tenantID.String(), monthStart.Format("2006-01")); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) fetchBoth(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]EntryPoint, []EntryPoint, error) {
	var incomes, expenditures []EntryPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = s.repo.EntriesInRange(gctx, tenantID, ledger.KindIncome, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		expenditures, err = s.repo.EntriesInRange(gctx, tenantID, ledger.KindExpenditure, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return incomes, expenditures, nil
}

func (s *Service) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	if s.cache == nil {
		// Nil-client FetchJSON still round-trips through JSON, so the
		// uncached path decodes identically to a cache hit.
		return (&Cache{}).FetchJSON(ctx, "", dest, loader)
	}
	ver, err := s.cache.Version(ctx)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("dashboard:%s:%d", strings.Join(parts, ":"), ver)
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

func sumRange(points []EntryPoint, from, to time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range points {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		sum = sum.Add(p.Amount)
	}
	return sum
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
