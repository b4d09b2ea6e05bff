package service

import (
	"context"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeUsageRepo struct {
	rec        *model.UsageRecord
	resetCalls int
	addedMin   int
}

func (f *fakeUsageRepo) GetUsageRecord(ctx context.Context, userID string) (*model.UsageRecord, error) {
	if f.rec == nil {
		return nil, nil
	}
	cp := *f.rec
	return &cp, nil
}

func (f *fakeUsageRepo) CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error {
	if f.rec == nil {
		cp := *rec
		f.rec = &cp
	}
	return nil
}

func (f *fakeUsageRepo) AddMinutes(ctx context.Context, userID string, minutes int) error {
	f.rec.UsedMinutes += minutes
	f.addedMin += minutes
	return nil
}

func (f *fakeUsageRepo) ResetCycle(ctx context.Context, userID string, cycleStart time.Time) error {
	// Mirrors the SQL month guard: a reset into the same month is a no-op.
	if f.rec.CycleStart.Year() == cycleStart.Year() && f.rec.CycleStart.Month() == cycleStart.Month() {
		return nil
	}
	f.resetCalls++
	f.rec.UsedMinutes = 0
	f.rec.CycleStart = cycleStart
	return nil
}

func (f *fakeUsageRepo) UpdatePlan(ctx context.Context, userID, planName string, allowedMinutes int) error {
	f.rec.PlanName = planName
	f.rec.AllowedMinutes = allowedMinutes
	return nil
}

func newUsageServiceAt(repo *fakeUsageRepo, now time.Time) *usageService {
	svc := NewUsageService(repo, zerolog.Nop()).(*usageService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSnapshotSameCycle(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{rec: &model.UsageRecord{
		UserID:         "u1",
		PlanName:       "free",
		AllowedMinutes: 30,
		UsedMinutes:    12,
		CycleStart:     time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := newUsageServiceAt(repo, now)

	snap, err := svc.Snapshot(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 12, snap.UsedMinutes)
	require.Equal(t, 18, snap.RemainingMinutes)
	require.False(t, snap.IsOverLimit)
	require.Zero(t, repo.resetCalls, "no reset within the same month")
}

func TestSnapshotLazyMonthlyReset(t *testing.T) {
	// Cycle started in February; it is now April. One reset to the current
	// month, not one per elapsed month.
	now := time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{rec: &model.UsageRecord{
		UserID:         "u1",
		PlanName:       "free",
		AllowedMinutes: 30,
		UsedMinutes:    30,
		CycleStart:     time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := newUsageServiceAt(repo, now)

	snap, err := svc.Snapshot(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 0, snap.UsedMinutes)
	require.False(t, snap.IsOverLimit)
	require.Equal(t, 1, repo.resetCalls)
	require.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), snap.CycleStart)

	// A second read in the same month must not reset again.
	_, err = svc.Snapshot(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, repo.resetCalls)
}

func TestSnapshotOverLimit(t *testing.T) {
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{rec: &model.UsageRecord{
		UserID:         "u1",
		PlanName:       "free",
		AllowedMinutes: 30,
		UsedMinutes:    31,
		CycleStart:     time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := newUsageServiceAt(repo, now)

	snap, err := svc.Snapshot(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, snap.IsOverLimit)
	require.Equal(t, 0, snap.RemainingMinutes, "remaining never goes negative")
}

func TestSnapshotMissingRecordFailsClosed(t *testing.T) {
	svc := newUsageServiceAt(&fakeUsageRepo{}, time.Now())
	_, err := svc.Snapshot(context.Background(), "u1")
	require.ErrorIs(t, err, ErrUsageRecordNotFound)
}

func TestSnapshotOrProvisionCreatesDefault(t *testing.T) {
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{}
	svc := newUsageServiceAt(repo, now)

	snap, err := svc.SnapshotOrProvision(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "free", snap.PlanName)
	require.Equal(t, model.DefaultPlan().AllowedMinutes, snap.AllowedMinutes)
	require.Equal(t, 0, snap.UsedMinutes)
}

func TestAddUsageAfterCycleRollover(t *testing.T) {
	now := time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{rec: &model.UsageRecord{
		UserID:         "u1",
		PlanName:       "starter",
		AllowedMinutes: 120,
		UsedMinutes:    90,
		CycleStart:     time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := newUsageServiceAt(repo, now)

	require.NoError(t, svc.AddUsage(context.Background(), "u1", 5))
	require.Equal(t, 1, repo.resetCalls, "minutes land in the new cycle")
	require.Equal(t, 5, repo.rec.UsedMinutes)
}

func TestAddUsageIgnoresNonPositive(t *testing.T) {
	repo := &fakeUsageRepo{rec: &model.UsageRecord{
		UserID: "u1", PlanName: "free", AllowedMinutes: 30,
		CycleStart: time.Now(),
	}}
	svc := newUsageServiceAt(repo, time.Now())

	require.NoError(t, svc.AddUsage(context.Background(), "u1", 0))
	require.Zero(t, repo.addedMin)
}

func TestChangePlanPreservesUsedMinutes(t *testing.T) {
	now := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	repo := &fakeUsageRepo{rec: &model.UsageRecord{
		UserID:         "u1",
		PlanName:       "free",
		AllowedMinutes: 30,
		UsedMinutes:    25,
		CycleStart:     time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := newUsageServiceAt(repo, now)

	plan, _ := model.PlanByName("pro")
	require.NoError(t, svc.ChangePlan(context.Background(), "u1", plan))
	require.Equal(t, "pro", repo.rec.PlanName)
	require.Equal(t, 600, repo.rec.AllowedMinutes)
	require.Equal(t, 25, repo.rec.UsedMinutes)
}
