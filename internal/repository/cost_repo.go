package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CostRecordRepository tracks per-user USD spend on third-party APIs.
type CostRecordRepository interface {
	// GetCostRecord returns nil, nil when the user has no record.
	GetCostRecord(ctx context.Context, userID string) (*model.CostRecord, error)
	CreateCostRecord(ctx context.Context, rec *model.CostRecord) error
	// AddSpend increments the total and monthly figures plus both call
	// counters in a single atomic statement.
	AddSpend(ctx context.Context, userID string, amount decimal.Decimal) error
	// ResetCycle zeroes the monthly figures when the stored cycle is in a
	// different month; idempotent within a month.
	ResetCycle(ctx context.Context, userID string, cycleStart time.Time) error
	// AppendAudit writes an append-only audit row; the log is never read back.
	AppendAudit(ctx context.Context, userID, service string, amount decimal.Decimal, referenceID string) error
}

type costRecordRepo struct {
	pool *pgxpool.Pool
}

func NewCostRecordRepo(pool *pgxpool.Pool) CostRecordRepository {
	return &costRecordRepo{pool: pool}
}

func (r *costRecordRepo) GetCostRecord(ctx context.Context, userID string) (*model.CostRecord, error) {
	const q = `
        SELECT user_id, total_cost_usd, monthly_cost_usd, monthly_calls, total_calls, cycle_start, updated_at
        FROM cost_records
        WHERE user_id = $1
    `
	var rec model.CostRecord
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&rec.UserID,
		&rec.TotalCostUSD,
		&rec.MonthlyCostUSD,
		&rec.MonthlyCalls,
		&rec.TotalCalls,
		&rec.CycleStart,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching cost record for user %s: %w", userID, err)
	}
	return &rec, nil
}

func (r *costRecordRepo) CreateCostRecord(ctx context.Context, rec *model.CostRecord) error {
	const q = `
        INSERT INTO cost_records (user_id, total_cost_usd, monthly_cost_usd, monthly_calls, total_calls, cycle_start)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id) DO NOTHING
    `
	_, err := r.pool.Exec(ctx, q,
		rec.UserID,
		rec.TotalCostUSD,
		rec.MonthlyCostUSD,
		rec.MonthlyCalls,
		rec.TotalCalls,
		rec.CycleStart,
	)
	if err != nil {
		return fmt.Errorf("creating cost record for user %s: %w", rec.UserID, err)
	}
	return nil
}

func (r *costRecordRepo) AddSpend(ctx context.Context, userID string, amount decimal.Decimal) error {
	const q = `
        UPDATE cost_records
        SET total_cost_usd = total_cost_usd + $2,
            monthly_cost_usd = monthly_cost_usd + $2,
            monthly_calls = monthly_calls + 1,
            total_calls = total_calls + 1,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, amount)
	if err != nil {
		return fmt.Errorf("adding spend for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adding spend for user %s: no cost record", userID)
	}
	return nil
}

func (r *costRecordRepo) ResetCycle(ctx context.Context, userID string, cycleStart time.Time) error {
	const q = `
        UPDATE cost_records
        SET monthly_cost_usd = 0, monthly_calls = 0, cycle_start = $2, updated_at = NOW()
        WHERE user_id = $1
          AND date_trunc('month', cycle_start) <> date_trunc('month', $2::timestamptz)
    `
	if _, err := r.pool.Exec(ctx, q, userID, cycleStart); err != nil {
		return fmt.Errorf("resetting cost cycle for user %s: %w", userID, err)
	}
	return nil
}

func (r *costRecordRepo) AppendAudit(ctx context.Context, userID, service string, amount decimal.Decimal, referenceID string) error {
	const q = `
        INSERT INTO cost_audit_log (id, user_id, service, amount_usd, reference_id)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := r.pool.Exec(ctx, q, uuid.NewString(), userID, service, amount, referenceID); err != nil {
		return fmt.Errorf("appending cost audit entry for user %s: %w", userID, err)
	}
	return nil
}
