package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	// CreateUser inserts a profile row, returning the stored row. Re-running
	// for an existing user is a no-op that returns the existing row.
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	// DeleteUser removes the profile row; owned rows (audio files, transcripts,
	// content, ledgers) go with it via foreign-key cascades.
	DeleteUser(ctx context.Context, id string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
        INSERT INTO user_profiles (user_id, email, name, avatar_url)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, q, u.UserID, u.Email, u.Name, u.AvatarURL); err != nil {
		return nil, fmt.Errorf("creating user %s: %w", u.UserID, err)
	}
	stored, err := r.GetUserByID(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("user %s missing after insert", u.UserID)
	}
	return stored, nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	const q = `
        SELECT user_id, email, name, avatar_url, created_at, updated_at
        FROM user_profiles
        WHERE user_id = $1
    `
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.UserID, &u.Email, &u.Name, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching user %s: %w", id, err)
	}
	return &u, nil
}

func (r *userRepo) UpdateUser(ctx context.Context, u *model.User) error {
	const q = `
        UPDATE user_profiles
        SET name = $2, avatar_url = $3, updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, u.UserID, u.Name, u.AvatarURL); err != nil {
		return fmt.Errorf("updating user %s: %w", u.UserID, err)
	}
	return nil
}

func (r *userRepo) DeleteUser(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("deleting user %s: %w", id, err)
	}
	return nil
}
