package dto

import "time"

// TranscriptResponseDTO is returned for a single transcript
type TranscriptResponseDTO struct {
	TranscriptID string    `json:"transcript_id"`
	AudioFileID  string    `json:"audio_file_id"`
	Content      string    `json:"content"`
	Language     string    `json:"language"`
	WordCount    int       `json:"word_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TranscribeResponseDTO wraps a transcript with its provenance: "database"
// when an earlier result was reused, "generated" when this request paid for
// a provider call.
type TranscribeResponseDTO struct {
	Transcript TranscriptResponseDTO `json:"transcript"`
	Source     string                `json:"source"`
	Warning    string                `json:"warning,omitempty"`
}

// TranscriptCreateDTO is used for incoming manual transcript creation
// requests, e.g. importing text transcribed elsewhere.
type TranscriptCreateDTO struct {
	AudioFileID string `json:"audio_file_id" validate:"required,uuid4"`
	Content     string `json:"content" validate:"required"`
	Language    string `json:"language"`
}

// TranscriptUpdateDTO is used for incoming transcript update requests
type TranscriptUpdateDTO struct {
	Content  string `json:"content" validate:"required"`
	Language string `json:"language"`
}
