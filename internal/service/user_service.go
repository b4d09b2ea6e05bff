package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUnknownPlan  = errors.New("unknown plan")
)

// UserProfile bundles the profile row with the current usage snapshot.
type UserProfile struct {
	User  *model.User          `json:"user"`
	Usage *model.UsageSnapshot `json:"usage"`
}

type UserService interface {
	// SignUp creates the profile row and provisions the usage and cost
	// ledgers on the free plan. Safe to call repeatedly for the same user.
	SignUp(ctx context.Context, userID, email, name string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*model.User, error)
	// DeleteAccount removes the user's database rows, storage objects, and
	// upstream identity record. Database deletion cascades to audio files,
	// transcripts, content, and ledgers.
	DeleteAccount(ctx context.Context, userID string) error
	UpgradePlan(ctx context.Context, userID, planName string) (*model.UsageSnapshot, error)
}

type userService struct {
	users    repository.UserRepository
	usage    UsageService
	costs    CostService
	audio    AudioService
	identity IdentityClient
	events   EventService
	logger   zerolog.Logger
}

func NewUserService(
	users repository.UserRepository,
	usage UsageService,
	costs CostService,
	audio AudioService,
	identity IdentityClient,
	events EventService,
	logger zerolog.Logger,
) UserService {
	return &userService{
		users:    users,
		usage:    usage,
		costs:    costs,
		audio:    audio,
		identity: identity,
		events:   events,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) SignUp(ctx context.Context, userID, email, name string) (*model.User, error) {
	user, err := s.users.CreateUser(ctx, &model.User{
		UserID: userID,
		Email:  email,
		Name:   name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}

	if err := s.usage.Provision(ctx, userID, model.DefaultPlan()); err != nil {
		return nil, fmt.Errorf("failed to provision usage record: %w", err)
	}
	if err := s.costs.Provision(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to provision cost record: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Msg("User signed up")
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// The profile view provisions a missing ledger instead of failing, so
	// accounts created before the ledgers existed still render.
	snapshot, err := s.usage.SnapshotOrProvision(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserProfile{User: user, Usage: snapshot}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if name != "" {
		user.Name = name
	}
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	// Storage first: once the rows are gone there is no record of which
	// objects belonged to the user. A failure here is deferred to the
	// cleanup queue inside DeleteAllForUser, so deletion proceeds.
	if err := s.audio.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Storage cleanup deferred during account deletion")
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	// Upstream identity deletion is best effort; the local account is
	// already gone.
	if err := s.identity.DeleteAccount(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete upstream identity record")
	}

	s.events.Publish(ctx, EventAccountDeleted, userID, "", "")
	s.logger.Info().Str("user_id", userID).Msg("Account deleted")
	return nil
}

func (s *userService) UpgradePlan(ctx context.Context, userID, planName string) (*model.UsageSnapshot, error) {
	plan, ok := model.PlanByName(planName)
	if !ok {
		return nil, ErrUnknownPlan
	}
	if err := s.usage.ChangePlan(ctx, userID, plan); err != nil {
		return nil, err
	}
	return s.usage.Snapshot(ctx, userID)
}
