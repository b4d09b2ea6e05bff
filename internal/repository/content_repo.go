package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LearningContentRepository interface {
	GetContentByAudioFileID(ctx context.Context, audioFileID, userID string) (*model.LearningContent, error)
	// InsertContent inserts unless content already exists for the audio file;
	// inserted=false means another caller won the race.
	InsertContent(ctx context.Context, c *model.LearningContent) (stored *model.LearningContent, inserted bool, err error)
	DeleteContentByAudioFileID(ctx context.Context, audioFileID, userID string) error
}

type learningContentRepo struct {
	pool *pgxpool.Pool
}

func NewLearningContentRepo(pool *pgxpool.Pool) LearningContentRepository {
	return &learningContentRepo{pool: pool}
}

const contentColumns = `id, audio_file_id, user_id, payload, model, created_at`

func scanContent(row pgx.Row) (*model.LearningContent, error) {
	var c model.LearningContent
	err := row.Scan(
		&c.ID,
		&c.AudioFileID,
		&c.UserID,
		&c.Payload,
		&c.Model,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *learningContentRepo) GetContentByAudioFileID(ctx context.Context, audioFileID, userID string) (*model.LearningContent, error) {
	q := `SELECT ` + contentColumns + ` FROM learning_content WHERE audio_file_id = $1 AND user_id = $2`
	c, err := scanContent(r.pool.QueryRow(ctx, q, audioFileID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching learning content for audio file %s: %w", audioFileID, err)
	}
	return c, nil
}

func (r *learningContentRepo) InsertContent(ctx context.Context, c *model.LearningContent) (*model.LearningContent, bool, error) {
	q := `
        INSERT INTO learning_content (id, audio_file_id, user_id, payload, model)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (audio_file_id) DO NOTHING
        RETURNING ` + contentColumns
	stored, err := scanContent(r.pool.QueryRow(ctx, q, c.ID, c.AudioFileID, c.UserID, c.Payload, c.Model))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		if isForeignKeyViolation(err) {
			return nil, false, fmt.Errorf("inserting learning content for audio file %s: %w", c.AudioFileID, ErrParentRowGone)
		}
		return nil, false, fmt.Errorf("inserting learning content for audio file %s: %w", c.AudioFileID, err)
	}
	return stored, true, nil
}

func (r *learningContentRepo) DeleteContentByAudioFileID(ctx context.Context, audioFileID, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM learning_content WHERE audio_file_id = $1 AND user_id = $2`, audioFileID, userID); err != nil {
		return fmt.Errorf("deleting learning content for audio file %s: %w", audioFileID, err)
	}
	return nil
}
