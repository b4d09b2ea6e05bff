package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrUsageRecordNotFound is returned when a user has no usage record. Quota
// checks treat this as "unable to verify" and fail closed rather than
// assuming zero usage.
var ErrUsageRecordNotFound = errors.New("usage record not found")

type UsageService interface {
	// Snapshot returns the user's usage for the current cycle, performing the
	// lazy monthly reset when the stored cycle month has passed.
	Snapshot(ctx context.Context, userID string) (*model.UsageSnapshot, error)
	// SnapshotOrProvision is Snapshot, but synthesizes a default free-tier
	// record when none exists. Only the profile fetch path uses it.
	SnapshotOrProvision(ctx context.Context, userID string) (*model.UsageSnapshot, error)
	// AddUsage records consumed transcription minutes.
	AddUsage(ctx context.Context, userID string, minutes int) error
	// Provision creates the usage record for a new user on the given plan.
	Provision(ctx context.Context, userID string, plan model.Plan) error
	// ChangePlan moves the user to a new tier, preserving used minutes.
	ChangePlan(ctx context.Context, userID string, plan model.Plan) error
}

type usageService struct {
	repo   repository.UsageRecordRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewUsageService(repo repository.UsageRecordRepository, logger zerolog.Logger) UsageService {
	return &usageService{
		repo:   repo,
		logger: logger.With().Str("service", "UsageService").Logger(),
		now:    time.Now,
	}
}

// sameCycle reports whether both times fall in the same wall-clock month.
func sameCycle(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (s *usageService) Snapshot(ctx context.Context, userID string) (*model.UsageSnapshot, error) {
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrUsageRecordNotFound
	}
	return snapshotFromRecord(rec), nil
}

func (s *usageService) SnapshotOrProvision(ctx context.Context, userID string) (*model.UsageSnapshot, error) {
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		plan := model.DefaultPlan()
		if err := s.Provision(ctx, userID, plan); err != nil {
			return nil, err
		}
		s.logger.Info().Str("user_id", userID).Msg("Provisioned default usage record on demand")
		rec, err = s.repo.GetUsageRecord(ctx, userID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrUsageRecordNotFound
		}
	}
	return snapshotFromRecord(rec), nil
}

// loadCurrent fetches the record and applies the lazy monthly reset.
func (s *usageService) loadCurrent(ctx context.Context, userID string) (*model.UsageRecord, error) {
	rec, err := s.repo.GetUsageRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	now := s.now()
	if !sameCycle(rec.CycleStart, now) {
		if err := s.repo.ResetCycle(ctx, userID, monthStart(now)); err != nil {
			return nil, fmt.Errorf("resetting usage cycle: %w", err)
		}
		rec, err = s.repo.GetUsageRecord(ctx, userID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
	}
	return rec, nil
}

func snapshotFromRecord(rec *model.UsageRecord) *model.UsageSnapshot {
	remaining := rec.AllowedMinutes - rec.UsedMinutes
	if remaining < 0 {
		remaining = 0
	}
	return &model.UsageSnapshot{
		PlanName:         rec.PlanName,
		AllowedMinutes:   rec.AllowedMinutes,
		UsedMinutes:      rec.UsedMinutes,
		RemainingMinutes: remaining,
		IsOverLimit:      rec.UsedMinutes >= rec.AllowedMinutes,
		CycleStart:       rec.CycleStart,
	}
}

func (s *usageService) AddUsage(ctx context.Context, userID string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	// Resolve the cycle first so minutes land in the current month.
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrUsageRecordNotFound
	}
	if err := s.repo.AddMinutes(ctx, userID, minutes); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int("minutes", minutes).Msg("Failed to record usage")
		return err
	}
	return nil
}

func (s *usageService) Provision(ctx context.Context, userID string, plan model.Plan) error {
	rec := &model.UsageRecord{
		UserID:         userID,
		PlanName:       plan.Name,
		AllowedMinutes: plan.AllowedMinutes,
		UsedMinutes:    0,
		CycleStart:     monthStart(s.now()),
	}
	return s.repo.CreateUsageRecord(ctx, rec)
}

func (s *usageService) ChangePlan(ctx context.Context, userID string, plan model.Plan) error {
	rec, err := s.loadCurrent(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrUsageRecordNotFound
	}
	if err := s.repo.UpdatePlan(ctx, userID, plan.Name, plan.AllowedMinutes); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("plan", plan.Name).Msg("Plan changed")
	return nil
}
