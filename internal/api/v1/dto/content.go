package dto

import (
	"encoding/json"
	"time"
)

// ContentResponseDTO is returned for generated learning content
type ContentResponseDTO struct {
	ContentID   string          `json:"content_id"`
	AudioFileID string          `json:"audio_file_id"`
	Payload     json.RawMessage `json:"payload"`
	Model       string          `json:"model"`
	CreatedAt   time.Time       `json:"created_at"`
}

// GenerateContentRequestDTO is used for incoming generation requests
type GenerateContentRequestDTO struct {
	AudioFileID string `json:"audio_file_id" validate:"required,uuid4"`
}

// GenerateContentResponseDTO wraps content with its provenance, mirroring
// the transcription response.
type GenerateContentResponseDTO struct {
	Content ContentResponseDTO `json:"content"`
	Source  string             `json:"source"`
	Warning string             `json:"warning,omitempty"`
}
