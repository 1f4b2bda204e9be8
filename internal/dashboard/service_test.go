package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/studioops/studioops/internal/ledger"
)

type stubRepo struct {
	incomes      []EntryPoint
	expenditures []EntryPoint
	total        decimal.Decimal
	categories   []CategoryAmount

	// mu guards the fields below; the service queries both entry kinds from
	// concurrent goroutines.
	mu         sync.Mutex
	rangeCalls int
	totalCalls int
	lastFrom   time.Time
	lastTo     time.Time
}

func (s *stubRepo) EntriesInRange(_ context.Context, _ uuid.UUID, kind ledger.Kind, from, to time.Time) ([]EntryPoint, error) {
	s.mu.Lock()
	s.rangeCalls++
	s.lastFrom, s.lastTo = from, to
	s.mu.Unlock()
	if kind == ledger.KindIncome {
		return s.incomes, nil
	}
	return s.expenditures, nil
}

func (s *stubRepo) TotalAccountBalance(context.Context, uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	s.totalCalls++
	s.mu.Unlock()
	return s.total, nil
}

func (s *stubRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeCalls
}

func (s *stubRepo) window() (time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrom, s.lastTo
}

func (s *stubRepo) ExpendituresByCategory(context.Context, uuid.UUID, time.Time, time.Time) ([]CategoryAmount, error) {
	return s.categories, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMonthlyTrendZeroFillsTwelveMonths(t *testing.T) {
	repo := &stubRepo{
		incomes: []EntryPoint{
			{Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Amount: dec("1200")},
			{Date: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), Amount: dec("300")},
		},
		expenditures: []EntryPoint{
			{Date: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), Amount: dec("450")},
		},
	}
	svc := NewService(repo, nil)
	svc.WithNow(fixedNow)

	points, err := svc.MonthlyTrend(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, points, 12)

	require.Equal(t, "Jul 23", points[0].Month)
	require.Equal(t, "Jun 24", points[11].Month)

	require.True(t, points[11].Income.Equal(dec("1200")))
	require.True(t, points[11].Expenses.Equal(dec("450")))
	require.True(t, points[9].Income.Equal(dec("300")), "April income")
	require.True(t, points[0].Income.IsZero())
	require.True(t, points[0].Expenses.IsZero())
}

func TestCashFlowRunningBalanceEndsAtLiveTotal(t *testing.T) {
	repo := &stubRepo{
		total: dec("1000"),
		incomes: []EntryPoint{
			{Date: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), Amount: dec("200")},
		},
		expenditures: []EntryPoint{
			{Date: time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC), Amount: dec("50")},
			{Date: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC), Amount: dec("75")},
		},
	}
	svc := NewService(repo, nil)
	svc.WithNow(fixedNow)

	points, err := svc.CashFlow(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, points, 2)

	// Start = 1000 - 200 + 125 = 925.
	require.Equal(t, "2024-06-01", points[0].Date)
	require.True(t, points[0].Balance.Equal(dec("1075")), "925 + 200 - 50")
	require.True(t, points[0].Income.Equal(dec("200")))
	require.True(t, points[0].Expense.Equal(dec("50")))

	require.Equal(t, "2024-06-10", points[1].Date)
	require.True(t, points[1].Balance.Equal(dec("1000")), "series must end at the live total")
}

func TestCashFlowQueriesThirtyDayWindow(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)
	svc.WithNow(fixedNow)

	_, err := svc.CashFlow(context.Background(), uuid.New())
	require.NoError(t, err)

	from, to := repo.window()
	require.Equal(t, fixedNow(), to)
	require.Equal(t, 30*24*time.Hour, to.Sub(from))
}

func TestCategoryBreakdownPassesThrough(t *testing.T) {
	repo := &stubRepo{categories: []CategoryAmount{
		{Name: "Rent", Color: "#ff0000", Amount: dec("900")},
		{Name: "Uncategorized", Amount: dec("120")},
	}}
	svc := NewService(repo, nil)
	svc.WithNow(fixedNow)

	out, err := svc.CategoryBreakdown(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Rent", out[0].Name)
	require.True(t, out[0].Amount.Equal(dec("900")))
}

func TestMonthlyTrendUsesCacheUntilBumped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	repo := &stubRepo{incomes: []EntryPoint{
		{Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Amount: dec("10")},
	}}
	svc := NewService(repo, cache)
	svc.WithNow(fixedNow)

	tenant := uuid.New()
	ctx := context.Background()

	_, err := svc.MonthlyTrend(ctx, tenant)
	require.NoError(t, err)
	first := repo.calls()

	cached, err := svc.MonthlyTrend(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, first, repo.calls(), "second read must come from cache")
	require.True(t, cached[11].Income.Equal(dec("10")))

	require.NoError(t, cache.Bump(ctx))

	_, err = svc.MonthlyTrend(ctx, tenant)
	require.NoError(t, err)
	require.Greater(t, repo.calls(), first, "bump must force a reload")
}

func TestRollupsRequireTenant(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)
	svc.WithNow(fixedNow)

	_, err := svc.MonthlyTrend(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = svc.CashFlow(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = svc.CategoryBreakdown(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)
}
