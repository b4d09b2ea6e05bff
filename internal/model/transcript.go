package model

import "time"

// Transcript is the speech-to-text result for an audio file. At most one
// transcript exists per audio file, enforced by a unique constraint on
// audio_file_id.
type Transcript struct {
	ID          string    `db:"id" json:"id"`
	AudioFileID string    `db:"audio_file_id" json:"audio_file_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Content     string    `db:"content" json:"content"`
	Language    string    `db:"language" json:"language"`
	WordCount   int       `db:"word_count" json:"word_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
