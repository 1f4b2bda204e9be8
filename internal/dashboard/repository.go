package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/studioops/studioops/internal/ledger"
)

// EntryPoint is a dated amount used to fold trend and cash-flow series.
type EntryPoint struct {
	Date   time.Time
	Amount decimal.Decimal
}

// CategoryAmount is one slice of the category breakdown.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Color  string          `json:"color,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// Repository exposes the read-only rollup queries. No writes live here.
type Repository interface {
	EntriesInRange(ctx context.Context, tenantID uuid.UUID, kind ledger.Kind, from, to time.Time) ([]EntryPoint, error)
	TotalAccountBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)
	ExpendituresByCategory(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]CategoryAmount, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func tableFor(kind ledger.Kind) string {
	if kind == ledger.KindExpenditure {
		return "expenditures"
	}
	return "incomes"
}

func (r *pgRepository) EntriesInRange(ctx context.Context, tenantID uuid.UUID, kind ledger.Kind, from, to time.Time) ([]EntryPoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT date, amount::text FROM `+tableFor(kind)+`
WHERE company_id=$1 AND date >= $2 AND date <= $3
ORDER BY date ASC`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	points := []EntryPoint{}
	for rows.Next() {
		var p EntryPoint
		var amount string
		if err := rows.Scan(&p.Date, &amount); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("dashboard: parse amount: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *pgRepository) TotalAccountBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var sum string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0)::text FROM accounts WHERE company_id=$1`, tenantID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}

func (r *pgRepository) ExpendituresByCategory(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]CategoryAmount, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE(c.name, 'Uncategorized'), COALESCE(c.color, ''), SUM(e.amount)::text
FROM expenditures e
LEFT JOIN categories c ON c.id = e.category_id
WHERE e.company_id=$1 AND e.date >= $2 AND e.date <= $3
GROUP BY 1, 2
ORDER BY SUM(e.amount) DESC`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CategoryAmount{}
	for rows.Next() {
		var c CategoryAmount
		var amount string
		if err := rows.Scan(&c.Name, &c.Color, &amount); err != nil {
			return nil, err
		}
		if c.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("dashboard: parse amount: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
