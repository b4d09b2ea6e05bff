package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TranscriptRepository interface {
	GetTranscriptByID(ctx context.Context, id, userID string) (*model.Transcript, error)
	GetTranscriptByAudioFileID(ctx context.Context, audioFileID, userID string) (*model.Transcript, error)
	ListTranscriptsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Transcript, error)
	// InsertTranscript inserts the row unless a transcript already exists for
	// the audio file. The unique constraint on audio_file_id makes the
	// check-then-act window atomic: inserted=false means another caller won
	// the race and the existing row should be returned instead.
	InsertTranscript(ctx context.Context, t *model.Transcript) (stored *model.Transcript, inserted bool, err error)
	UpdateTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, error)
	DeleteTranscript(ctx context.Context, id, userID string) error
}

type transcriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) TranscriptRepository {
	return &transcriptRepo{pool: pool}
}

const transcriptColumns = `id, audio_file_id, user_id, content, language, word_count, created_at, updated_at`

func scanTranscript(row pgx.Row) (*model.Transcript, error) {
	var t model.Transcript
	err := row.Scan(
		&t.ID,
		&t.AudioFileID,
		&t.UserID,
		&t.Content,
		&t.Language,
		&t.WordCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transcriptRepo) GetTranscriptByID(ctx context.Context, id, userID string) (*model.Transcript, error) {
	q := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE id = $1 AND user_id = $2`
	t, err := scanTranscript(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching transcript %s: %w", id, err)
	}
	return t, nil
}

func (r *transcriptRepo) GetTranscriptByAudioFileID(ctx context.Context, audioFileID, userID string) (*model.Transcript, error) {
	q := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE audio_file_id = $1 AND user_id = $2`
	t, err := scanTranscript(r.pool.QueryRow(ctx, q, audioFileID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching transcript for audio file %s: %w", audioFileID, err)
	}
	return t, nil
}

func (r *transcriptRepo) ListTranscriptsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Transcript, error) {
	q := `
        SELECT ` + transcriptColumns + `
        FROM transcripts
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var transcripts []model.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transcript row: %w", err)
		}
		transcripts = append(transcripts, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcript rows: %w", err)
	}
	return transcripts, nil
}

func (r *transcriptRepo) InsertTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, bool, error) {
	q := `
        INSERT INTO transcripts (id, audio_file_id, user_id, content, language, word_count)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (audio_file_id) DO NOTHING
        RETURNING ` + transcriptColumns
	stored, err := scanTranscript(r.pool.QueryRow(ctx, q, t.ID, t.AudioFileID, t.UserID, t.Content, t.Language, t.WordCount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict: another request inserted first.
			return nil, false, nil
		}
		if isForeignKeyViolation(err) {
			return nil, false, fmt.Errorf("inserting transcript for audio file %s: %w", t.AudioFileID, ErrParentRowGone)
		}
		return nil, false, fmt.Errorf("inserting transcript for audio file %s: %w", t.AudioFileID, err)
	}
	return stored, true, nil
}

func (r *transcriptRepo) UpdateTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, error) {
	q := `
        UPDATE transcripts
        SET content = $3, language = $4, word_count = $5, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING ` + transcriptColumns
	stored, err := scanTranscript(r.pool.QueryRow(ctx, q, t.ID, t.UserID, t.Content, t.Language, t.WordCount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating transcript %s: %w", t.ID, err)
	}
	return stored, nil
}

func (r *transcriptRepo) DeleteTranscript(ctx context.Context, id, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM transcripts WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("deleting transcript %s: %w", id, err)
	}
	return nil
}
