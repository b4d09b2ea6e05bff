package model

import (
	"encoding/json"
	"time"
)

// LearningContent is the LLM-generated study material for an audio file.
// The payload is an opaque JSON document produced by the model; the server
// never interprets it beyond PDF rendering. One row per audio file.
type LearningContent struct {
	ID          string          `db:"id" json:"id"`
	AudioFileID string          `db:"audio_file_id" json:"audio_file_id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Model       string          `db:"model" json:"model"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
