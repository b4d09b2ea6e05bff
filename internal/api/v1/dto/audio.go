package dto

import "time"

// AudioFileResponseDTO is returned for a single audio file
type AudioFileResponseDTO struct {
	AudioFileID string    `json:"audio_file_id"`
	FileName    string    `json:"file_name"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TranscribeRequestDTO is used for incoming transcription requests
type TranscribeRequestDTO struct {
	AudioFileID string `json:"audio_file_id" validate:"required,uuid4"`
}
