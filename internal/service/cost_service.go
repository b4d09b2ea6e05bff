package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrCostRecordNotFound is returned when a user has no cost record; limit
// checks fail closed in that case.
var ErrCostRecordNotFound = errors.New("cost record not found")

// CostDecision is the outcome of a pre-call limit check.
type CostDecision struct {
	Allowed bool
	Message string
}

type CostService interface {
	// CheckLimit must run before invoking a paid external API. It evaluates
	// three independent thresholds: per-call cap, monthly cap, and an
	// approximate daily cap (monthly-to-date spend divided by the day of the
	// month, not a rolling 24h window).
	CheckLimit(ctx context.Context, userID string, estimatedUSD decimal.Decimal, plan model.Plan) (*CostDecision, error)
	// RecordSpend must run after a successful paid call. Also appends a
	// best-effort audit entry.
	RecordSpend(ctx context.Context, userID string, actualUSD decimal.Decimal, service, referenceID string) error
	// Provision creates the cost record for a new user.
	Provision(ctx context.Context, userID string) error
	// Snapshot returns the cost record after applying any pending cycle reset.
	Snapshot(ctx context.Context, userID string) (*model.CostRecord, error)
}

type costService struct {
	repo   repository.CostRecordRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewCostService(repo repository.CostRecordRepository, logger zerolog.Logger) CostService {
	return &costService{
		repo:   repo,
		logger: logger.With().Str("service", "CostService").Logger(),
		now:    time.Now,
	}
}

func (s *costService) CheckLimit(ctx context.Context, userID string, estimatedUSD decimal.Decimal, plan model.Plan) (*CostDecision, error) {
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCostRecordNotFound
	}

	// Per-call cap applies regardless of spend so far.
	if estimatedUSD.GreaterThan(plan.PerCallLimitUSD) {
		return &CostDecision{
			Allowed: false,
			Message: fmt.Sprintf("estimated cost $%s exceeds the per-request limit of $%s for the %s plan",
				estimatedUSD.StringFixed(4), plan.PerCallLimitUSD.StringFixed(2), plan.Name),
		}, nil
	}

	projected := rec.MonthlyCostUSD.Add(estimatedUSD)
	if projected.GreaterThan(plan.MonthlyLimitUSD) {
		return &CostDecision{
			Allowed: false,
			Message: fmt.Sprintf("monthly spending limit of $%s reached for the %s plan",
				plan.MonthlyLimitUSD.StringFixed(2), plan.Name),
		}, nil
	}

	// Approximate daily cap: average the month-to-date spend over the days
	// elapsed. This can over- and under-trigger versus a true rolling window.
	dayOfMonth := int64(s.now().Day())
	dailyLimit := plan.MonthlyLimitUSD.Div(decimal.NewFromInt(daysInMonthCap))
	dailyAverage := projected.Div(decimal.NewFromInt(dayOfMonth))
	if dailyAverage.GreaterThan(dailyLimit) {
		return &CostDecision{
			Allowed: false,
			Message: fmt.Sprintf("daily spending limit of $%s reached for the %s plan",
				dailyLimit.StringFixed(2), plan.Name),
		}, nil
	}

	return &CostDecision{Allowed: true}, nil
}

// daysInMonthCap sizes the derived daily cap as an even slice of the
// monthly limit.
const daysInMonthCap = 30

func (s *costService) RecordSpend(ctx context.Context, userID string, actualUSD decimal.Decimal, service, referenceID string) error {
	if actualUSD.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrCostRecordNotFound
	}
	if err := s.repo.AddSpend(ctx, userID, actualUSD); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("amount", actualUSD.String()).Msg("Failed to record spend")
		return err
	}
	// Audit entries are best effort; a failed write never fails the request.
	if err := s.repo.AppendAudit(ctx, userID, service, actualUSD, referenceID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("service", service).Msg("Failed to append cost audit entry")
	}
	return nil
}

func (s *costService) Provision(ctx context.Context, userID string) error {
	rec := &model.CostRecord{
		UserID:         userID,
		TotalCostUSD:   decimal.Zero,
		MonthlyCostUSD: decimal.Zero,
		CycleStart:     monthStart(s.now()),
	}
	return s.repo.CreateCostRecord(ctx, rec)
}

func (s *costService) Snapshot(ctx context.Context, userID string) (*model.CostRecord, error) {
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCostRecordNotFound
	}
	return rec, nil
}

// loadCurrent fetches the record and applies the lazy monthly reset,
// independent of the usage ledger's cycle.
func (s *costService) loadCurrent(ctx context.Context, userID string) (*model.CostRecord, error) {
	rec, err := s.repo.GetCostRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	now := s.now()
	if !sameCycle(rec.CycleStart, now) {
		if err := s.repo.ResetCycle(ctx, userID, monthStart(now)); err != nil {
			return nil, fmt.Errorf("resetting cost cycle: %w", err)
		}
		rec, err = s.repo.GetCostRecord(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}
