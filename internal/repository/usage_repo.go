package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRecordRepository tracks per-user transcription minutes for the
// current billing cycle.
type UsageRecordRepository interface {
	// GetUsageRecord returns nil, nil when the user has no record.
	GetUsageRecord(ctx context.Context, userID string) (*model.UsageRecord, error)
	// CreateUsageRecord inserts the record; re-running for an existing user is
	// a no-op.
	CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error
	// AddMinutes increments used_minutes by the given delta in a single
	// statement so concurrent updates cannot lose each other's writes.
	AddMinutes(ctx context.Context, userID string, minutes int) error
	// ResetCycle zeroes used_minutes and moves cycle_start to the given month
	// start, but only when the stored cycle is in a different month. Calling
	// it repeatedly within the same month is a no-op.
	ResetCycle(ctx context.Context, userID string, cycleStart time.Time) error
	// UpdatePlan swaps the plan name and allowance, preserving used_minutes
	// and cycle_start.
	UpdatePlan(ctx context.Context, userID, planName string, allowedMinutes int) error
}

type usageRecordRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRecordRepo(pool *pgxpool.Pool) UsageRecordRepository {
	return &usageRecordRepo{pool: pool}
}

func (r *usageRecordRepo) GetUsageRecord(ctx context.Context, userID string) (*model.UsageRecord, error) {
	const q = `
        SELECT user_id, plan_name, allowed_minutes, used_minutes, cycle_start, updated_at
        FROM usage_records
        WHERE user_id = $1
    `
	var rec model.UsageRecord
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&rec.UserID,
		&rec.PlanName,
		&rec.AllowedMinutes,
		&rec.UsedMinutes,
		&rec.CycleStart,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching usage record for user %s: %w", userID, err)
	}
	return &rec, nil
}

func (r *usageRecordRepo) CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error {
	const q = `
        INSERT INTO usage_records (user_id, plan_name, allowed_minutes, used_minutes, cycle_start)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, q, rec.UserID, rec.PlanName, rec.AllowedMinutes, rec.UsedMinutes, rec.CycleStart); err != nil {
		return fmt.Errorf("creating usage record for user %s: %w", rec.UserID, err)
	}
	return nil
}

func (r *usageRecordRepo) AddMinutes(ctx context.Context, userID string, minutes int) error {
	const q = `
        UPDATE usage_records
        SET used_minutes = used_minutes + $2, updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, minutes)
	if err != nil {
		return fmt.Errorf("adding %d minutes for user %s: %w", minutes, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adding minutes for user %s: no usage record", userID)
	}
	return nil
}

func (r *usageRecordRepo) ResetCycle(ctx context.Context, userID string, cycleStart time.Time) error {
	// The month guard keeps concurrent resets idempotent: only the first one
	// in a new month changes the row.
	const q = `
        UPDATE usage_records
        SET used_minutes = 0, cycle_start = $2, updated_at = NOW()
        WHERE user_id = $1
          AND date_trunc('month', cycle_start) <> date_trunc('month', $2::timestamptz)
    `
	if _, err := r.pool.Exec(ctx, q, userID, cycleStart); err != nil {
		return fmt.Errorf("resetting usage cycle for user %s: %w", userID, err)
	}
	return nil
}

func (r *usageRecordRepo) UpdatePlan(ctx context.Context, userID, planName string, allowedMinutes int) error {
	const q = `
        UPDATE usage_records
        SET plan_name = $2, allowed_minutes = $3, updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, planName, allowedMinutes)
	if err != nil {
		return fmt.Errorf("updating plan for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating plan for user %s: no usage record", userID)
	}
	return nil
}
