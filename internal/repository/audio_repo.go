package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type AudioFileRepository interface {
	CreateAudioFile(ctx context.Context, f *model.AudioFile) (*model.AudioFile, error)
	// GetAudioFileByID returns nil, nil when no row is owned by userID.
	GetAudioFileByID(ctx context.Context, id, userID string) (*model.AudioFile, error)
	ListAudioFilesByUser(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error)
	UpdateStatus(ctx context.Context, id, userID, status string) error
	DeleteAudioFile(ctx context.Context, id, userID string) error
}

type audioFileRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewAudioFileRepo(pool *pgxpool.Pool, logger zerolog.Logger) AudioFileRepository {
	return &audioFileRepo{pool: pool, logger: logger}
}

func (r *audioFileRepo) CreateAudioFile(ctx context.Context, f *model.AudioFile) (*model.AudioFile, error) {
	const q = `
        INSERT INTO audio_files (id, user_id, file_name, storage_path, size_bytes, mime_type, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, user_id, file_name, storage_path, size_bytes, mime_type, status, created_at, updated_at
    `
	var stored model.AudioFile
	err := r.pool.QueryRow(ctx, q, f.ID, f.UserID, f.FileName, f.StoragePath, f.SizeBytes, f.MimeType, f.Status).Scan(
		&stored.ID,
		&stored.UserID,
		&stored.FileName,
		&stored.StoragePath,
		&stored.SizeBytes,
		&stored.MimeType,
		&stored.Status,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating audio file for user %s: %w", f.UserID, err)
	}
	return &stored, nil
}

func (r *audioFileRepo) GetAudioFileByID(ctx context.Context, id, userID string) (*model.AudioFile, error) {
	const q = `
        SELECT id, user_id, file_name, storage_path, size_bytes, mime_type, status, created_at, updated_at
        FROM audio_files
        WHERE id = $1 AND user_id = $2
    `
	var f model.AudioFile
	err := r.pool.QueryRow(ctx, q, id, userID).Scan(
		&f.ID,
		&f.UserID,
		&f.FileName,
		&f.StoragePath,
		&f.SizeBytes,
		&f.MimeType,
		&f.Status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching audio file %s: %w", id, err)
	}
	return &f, nil
}

func (r *audioFileRepo) ListAudioFilesByUser(ctx context.Context, userID string, limit, offset int) ([]model.AudioFile, error) {
	const q = `
        SELECT id, user_id, file_name, storage_path, size_bytes, mime_type, status, created_at, updated_at
        FROM audio_files
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing audio files for user %s: %w", userID, err)
	}
	defer rows.Close()

	var files []model.AudioFile
	for rows.Next() {
		var f model.AudioFile
		if err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.FileName,
			&f.StoragePath,
			&f.SizeBytes,
			&f.MimeType,
			&f.Status,
			&f.CreatedAt,
			&f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audio file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audio file rows: %w", err)
	}
	return files, nil
}

func (r *audioFileRepo) UpdateStatus(ctx context.Context, id, userID, status string) error {
	const q = `
        UPDATE audio_files
        SET status = $3, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.pool.Exec(ctx, q, id, userID, status)
	if err != nil {
		return fmt.Errorf("updating status of audio file %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("audio_file_id", id).Str("status", status).Msg("Status update matched no rows")
	}
	return nil
}

func (r *audioFileRepo) DeleteAudioFile(ctx context.Context, id, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM audio_files WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("deleting audio file %s: %w", id, err)
	}
	return nil
}
