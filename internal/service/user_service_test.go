package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	if existing, ok := f.users[u.UserID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *u
	f.users[u.UserID] = &cp
	return u, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) UpdateUser(ctx context.Context, u *model.User) error {
	f.users[u.UserID] = u
	return nil
}

func (f *fakeUserRepo) DeleteUser(ctx context.Context, id string) error {
	delete(f.users, id)
	return nil
}

type fakeIdentity struct {
	deleted []string
	err     error
}

func (f *fakeIdentity) DeleteAccount(ctx context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

type provisioningUsage struct {
	fakeUsageService
	provisioned []string
	changedTo   string
}

func (p *provisioningUsage) Provision(ctx context.Context, userID string, plan model.Plan) error {
	p.provisioned = append(p.provisioned, userID)
	return nil
}

func (p *provisioningUsage) ChangePlan(ctx context.Context, userID string, plan model.Plan) error {
	p.changedTo = plan.Name
	return nil
}

type provisioningCosts struct {
	fakeCostService
	provisioned []string
}

func (p *provisioningCosts) Provision(ctx context.Context, userID string) error {
	p.provisioned = append(p.provisioned, userID)
	return nil
}

type userFixture struct {
	svc      UserService
	users    *fakeUserRepo
	usage    *provisioningUsage
	costs    *provisioningCosts
	audio    *audioServiceStub
	identity *fakeIdentity
	events   *fakeEvents
}

// audioServiceStub satisfies AudioService with only DeleteAllForUser doing
// anything observable.
type audioServiceStub struct {
	cleaned []string
	err     error
}

func (a *audioServiceStub) ValidateUpload(sizeBytes int64, mimeType string) error { return nil }

func (a *audioServiceStub) Upload(ctx context.Context, userID, fileName, mimeType string, sizeBytes int64, body io.Reader) (*model.AudioFile, error) {
	return nil, nil
}

func (a *audioServiceStub) GetAudioFile(ctx context.Context, id, userID string) (*model.AudioFile, error) {
	return nil, nil
}

func (a *audioServiceStub) ListAudioFiles(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error) {
	return nil, nil
}

func (a *audioServiceStub) DeleteAudioFile(ctx context.Context, id, userID string) error { return nil }

func (a *audioServiceStub) DeleteAllForUser(ctx context.Context, userID string) error {
	a.cleaned = append(a.cleaned, userID)
	return a.err
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users: &fakeUserRepo{users: map[string]*model.User{}},
		usage: &provisioningUsage{fakeUsageService: fakeUsageService{snapshot: &model.UsageSnapshot{
			PlanName: "free", AllowedMinutes: 30,
		}}},
		costs:    &provisioningCosts{},
		audio:    &audioServiceStub{},
		identity: &fakeIdentity{},
		events:   &fakeEvents{},
	}
	f.svc = NewUserService(f.users, f.usage, f.costs, f.audio, f.identity, f.events, zerolog.Nop())
	return f
}

func TestSignUpProvisionsLedgers(t *testing.T) {
	f := newUserFixture()

	user, err := f.svc.SignUp(context.Background(), "u1", "u1@example.com", "Pat")
	require.NoError(t, err)
	require.Equal(t, "u1", user.UserID)
	require.Equal(t, []string{"u1"}, f.usage.provisioned)
	require.Equal(t, []string{"u1"}, f.costs.provisioned)
}

func TestSignUpIsRepeatable(t *testing.T) {
	f := newUserFixture()

	first, err := f.svc.SignUp(context.Background(), "u1", "u1@example.com", "Pat")
	require.NoError(t, err)
	second, err := f.svc.SignUp(context.Background(), "u1", "u1@example.com", "Pat")
	require.NoError(t, err)
	require.Equal(t, first.UserID, second.UserID)
	require.Len(t, f.users.users, 1)
}

func TestGetProfileUnknownUser(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.GetProfile(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.SignUp(context.Background(), "u1", "u1@example.com", "Pat")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccount(context.Background(), "u1"))
	require.Equal(t, []string{"u1"}, f.audio.cleaned)
	require.Empty(t, f.users.users)
	require.Equal(t, []string{"u1"}, f.identity.deleted)
	require.Equal(t, []string{EventAccountDeleted}, f.events.published)
}

func TestDeleteAccountProceedsWhenStorageFails(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.SignUp(context.Background(), "u1", "u1@example.com", "Pat")
	require.NoError(t, err)
	f.audio.err = errors.New("s3 unavailable")

	require.NoError(t, f.svc.DeleteAccount(context.Background(), "u1"))
	require.Empty(t, f.users.users, "row deletion proceeds; storage retry is queued")
}

func TestDeleteAccountToleratesIdentityFailure(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.SignUp(context.Background(), "u1", "u1@example.com", "Pat")
	require.NoError(t, err)
	f.identity.err = errors.New("upstream 500")

	require.NoError(t, f.svc.DeleteAccount(context.Background(), "u1"))
	require.Empty(t, f.users.users)
}

func TestUpgradePlanUnknownName(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.UpgradePlan(context.Background(), "u1", "platinum")
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestUpgradePlan(t *testing.T) {
	f := newUserFixture()
	_, err := f.svc.UpgradePlan(context.Background(), "u1", "starter")
	require.NoError(t, err)
	require.Equal(t, "starter", f.usage.changedTo)
}
