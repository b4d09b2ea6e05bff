package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"app/internal/model"
	"app/internal/repository"
	"app/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// UsageLimitError is returned when the user's monthly transcription
// allowance is exhausted.
type UsageLimitError struct {
	Message string
}

func (e *UsageLimitError) Error() string { return e.Message }

// CostLimitError is returned when a cost threshold blocks a paid call.
type CostLimitError struct {
	Message string
}

func (e *CostLimitError) Error() string { return e.Message }

// SourceDatabase marks a result served from an earlier run;
// SourceGenerated marks one produced by this request.
const (
	SourceDatabase  = "database"
	SourceGenerated = "generated"
)

// TranscribeOutcome is the result of a transcription request. Warning is set
// when a generated transcript could not be persisted and the caller should
// not rely on it surviving a retry.
type TranscribeOutcome struct {
	Transcript *model.Transcript
	Source     string
	Warning    string
}

// speechRatePerMinuteUSD prices the speech provider for local estimates when
// the provider omits a cost figure.
var speechRatePerMinuteUSD = decimal.NewFromFloat(0.006)

type TranscriptionService interface {
	// Transcribe returns the stored transcript for the audio file, creating
	// it via the speech provider on first call. Concurrent calls for the
	// same file converge on a single stored row.
	Transcribe(ctx context.Context, userID, audioFileID string) (*TranscribeOutcome, error)
	// CreateTranscript stores caller-supplied transcript text for an audio
	// file, bypassing the speech provider. Returns the existing row when one
	// is already stored for the file.
	CreateTranscript(ctx context.Context, userID, audioFileID, content, language string) (*model.Transcript, error)
	GetTranscript(ctx context.Context, id, userID string) (*model.Transcript, error)
	ListTranscripts(ctx context.Context, userID string, limit, offset int) ([]model.Transcript, error)
	UpdateTranscript(ctx context.Context, userID, id, content, language string) (*model.Transcript, error)
	DeleteTranscript(ctx context.Context, id, userID string) error
}

type transcriptionService struct {
	transcripts repository.TranscriptRepository
	audioFiles  repository.AudioFileRepository
	usage       UsageService
	costs       CostService
	speech      SpeechClient
	storage     StorageService
	events      EventService
	logger      zerolog.Logger
}

func NewTranscriptionService(
	transcripts repository.TranscriptRepository,
	audioFiles repository.AudioFileRepository,
	usage UsageService,
	costs CostService,
	speech SpeechClient,
	storage StorageService,
	events EventService,
	logger zerolog.Logger,
) TranscriptionService {
	return &transcriptionService{
		transcripts: transcripts,
		audioFiles:  audioFiles,
		usage:       usage,
		costs:       costs,
		speech:      speech,
		storage:     storage,
		events:      events,
		logger:      logger.With().Str("service", "TranscriptionService").Logger(),
	}
}

// estimateMinutes approximates audio duration from file size, roughly one
// minute per megabyte of compressed audio. Used only for pre-call gating;
// the ledger records the provider's actual duration.
func estimateMinutes(sizeBytes int64) int {
	minutes := int(math.Ceil(float64(sizeBytes) / (1 << 20)))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func billedMinutes(durationSeconds float64) int {
	minutes := int(math.Ceil(durationSeconds / 60))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func (s *transcriptionService) Transcribe(ctx context.Context, userID, audioFileID string) (*TranscribeOutcome, error) {
	audio, err := s.audioFiles.GetAudioFileByID(ctx, audioFileID, userID)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, ErrAudioFileNotFound
	}

	// Fast path: a transcript already exists, no paid call needed.
	existing, err := s.transcripts.GetTranscriptByAudioFileID(ctx, audioFileID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &TranscribeOutcome{Transcript: existing, Source: SourceDatabase}, nil
	}

	// Quota and cost gates run before the provider call. Any error here
	// fails closed; a paid call never proceeds on an unverified quota.
	snapshot, err := s.usage.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify usage quota: %w", err)
	}
	if snapshot.IsOverLimit {
		return nil, &UsageLimitError{Message: fmt.Sprintf(
			"monthly transcription limit reached (%d of %d minutes used)",
			snapshot.UsedMinutes, snapshot.AllowedMinutes,
		)}
	}

	plan, ok := model.PlanByName(snapshot.PlanName)
	if !ok {
		plan = model.DefaultPlan()
	}
	estimatedCost := speechRatePerMinuteUSD.Mul(decimal.NewFromInt(int64(estimateMinutes(audio.SizeBytes))))
	decision, err := s.costs.CheckLimit(ctx, userID, estimatedCost, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to verify cost limits: %w", err)
	}
	if !decision.Allowed {
		return nil, &CostLimitError{Message: decision.Message}
	}

	if err := s.audioFiles.UpdateStatus(ctx, audioFileID, userID, model.StatusProcessing); err != nil {
		s.logger.Warn().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to mark audio file as processing")
	}

	result, err := s.runProvider(ctx, audio)
	if err != nil {
		s.markFailed(ctx, audioFileID, userID)
		return nil, err
	}

	transcript := &model.Transcript{
		ID:          uuid.NewString(),
		AudioFileID: audioFileID,
		UserID:      userID,
		Content:     result.Text,
		Language:    result.Language,
		WordCount:   util.WordCount(result.Text),
	}

	// The provider call above was real regardless of what happens to this
	// row, so the ledgers settle for it on every path from here on.
	// A concurrent request may have finished while the provider ran.
	winner, err := s.transcripts.GetTranscriptByAudioFileID(ctx, audioFileID, userID)
	if err == nil && winner != nil {
		s.markCompleted(ctx, audioFileID, userID)
		s.settleLedgers(ctx, userID, transcript.ID, result)
		return &TranscribeOutcome{Transcript: winner, Source: SourceDatabase}, nil
	}

	stored, inserted, err := s.transcripts.InsertTranscript(ctx, transcript)
	if err != nil {
		// The provider call succeeded, so return the result anyway and flag
		// that it was not persisted.
		s.logger.Error().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to persist transcript")
		s.markCompleted(ctx, audioFileID, userID)
		s.settleLedgers(ctx, userID, transcript.ID, result)
		return &TranscribeOutcome{
			Transcript: transcript,
			Source:     SourceGenerated,
			Warning:    "transcript generated but could not be saved; it may be regenerated on a later request",
		}, nil
	}
	if !inserted {
		// Lost the insert race; the row that won is the canonical
		// transcript, so re-read it.
		s.markCompleted(ctx, audioFileID, userID)
		s.settleLedgers(ctx, userID, transcript.ID, result)
		winner, err := s.transcripts.GetTranscriptByAudioFileID(ctx, audioFileID, userID)
		if err != nil || winner == nil {
			s.logger.Error().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to re-read transcript after losing insert race")
			return &TranscribeOutcome{
				Transcript: transcript,
				Source:     SourceGenerated,
				Warning:    "transcript generated but could not be saved; it may be regenerated on a later request",
			}, nil
		}
		return &TranscribeOutcome{Transcript: winner, Source: SourceDatabase}, nil
	}

	s.markCompleted(ctx, audioFileID, userID)
	s.settleLedgers(ctx, userID, stored.ID, result)
	s.events.Publish(ctx, EventTranscriptionCompleted, userID, audioFileID, stored.ID)

	return &TranscribeOutcome{Transcript: stored, Source: SourceGenerated}, nil
}

func (s *transcriptionService) runProvider(ctx context.Context, audio *model.AudioFile) (*TranscriptionResult, error) {
	body, err := s.storage.Download(ctx, audio.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio from storage: %w", err)
	}
	defer body.Close()

	start := time.Now()
	result, err := s.speech.Transcribe(ctx, body, audio.MimeType)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	s.logger.Info().
		Str("audio_file_id", audio.ID).
		Float64("duration_seconds", result.DurationSeconds).
		Dur("elapsed", time.Since(start)).
		Msg("Transcription completed")
	return result, nil
}

// settleLedgers records actual usage and spend after a successful provider
// call. Ledger failures are logged, never surfaced: the transcript is
// already stored and the user should not see an error for it.
func (s *transcriptionService) settleLedgers(ctx context.Context, userID, transcriptID string, result *TranscriptionResult) {
	minutes := billedMinutes(result.DurationSeconds)
	if err := s.usage.AddUsage(ctx, userID, minutes); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int("minutes", minutes).Msg("Failed to record usage")
	}

	cost := result.CostUSD
	if cost.IsZero() {
		cost = speechRatePerMinuteUSD.Mul(decimal.NewFromInt(int64(minutes)))
	}
	if err := s.costs.RecordSpend(ctx, userID, cost, "transcription", transcriptID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record transcription spend")
	}
}

func (s *transcriptionService) markCompleted(ctx context.Context, audioFileID, userID string) {
	if err := s.audioFiles.UpdateStatus(ctx, audioFileID, userID, model.StatusCompleted); err != nil {
		s.logger.Warn().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to mark audio file as completed")
	}
}

func (s *transcriptionService) markFailed(ctx context.Context, audioFileID, userID string) {
	if err := s.audioFiles.UpdateStatus(ctx, audioFileID, userID, model.StatusFailed); err != nil {
		s.logger.Warn().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to mark audio file as failed")
	}
}

func (s *transcriptionService) GetTranscript(ctx context.Context, id, userID string) (*model.Transcript, error) {
	return s.transcripts.GetTranscriptByID(ctx, id, userID)
}

func (s *transcriptionService) ListTranscripts(ctx context.Context, userID string, limit, offset int) ([]model.Transcript, error) {
	return s.transcripts.ListTranscriptsByUser(ctx, userID, limit, offset)
}

func (s *transcriptionService) CreateTranscript(ctx context.Context, userID, audioFileID, content, language string) (*model.Transcript, error) {
	audioFile, err := s.audioFiles.GetAudioFileByID(ctx, audioFileID, userID)
	if err != nil {
		return nil, err
	}
	if audioFile == nil {
		return nil, ErrAudioFileNotFound
	}

	stored, inserted, err := s.transcripts.InsertTranscript(ctx, &model.Transcript{
		ID:          uuid.NewString(),
		AudioFileID: audioFileID,
		UserID:      userID,
		Content:     content,
		Language:    language,
		WordCount:   util.WordCount(content),
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.transcripts.GetTranscriptByAudioFileID(ctx, audioFileID, userID)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}
	return stored, nil
}

func (s *transcriptionService) UpdateTranscript(ctx context.Context, userID, id, content, language string) (*model.Transcript, error) {
	existing, err := s.transcripts.GetTranscriptByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	existing.Content = content
	if language != "" {
		existing.Language = language
	}
	existing.WordCount = util.WordCount(content)
	return s.transcripts.UpdateTranscript(ctx, existing)
}

func (s *transcriptionService) DeleteTranscript(ctx context.Context, id, userID string) error {
	return s.transcripts.DeleteTranscript(ctx, id, userID)
}
