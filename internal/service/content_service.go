package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrTranscriptRequired = errors.New("no transcript exists for this audio file; transcribe it first")

// llmCallEstimateUSD is the flat pre-call estimate for one generation.
// Actual spend is recorded from token counts after the call.
var llmCallEstimateUSD = decimal.NewFromFloat(0.02)

// ContentOutcome mirrors TranscribeOutcome for learning content.
type ContentOutcome struct {
	Content *model.LearningContent
	Source  string
	Warning string
}

type ContentService interface {
	// GetOrGenerate returns the stored learning content for the audio file,
	// generating it via the LLM on first call.
	GetOrGenerate(ctx context.Context, userID, audioFileID string) (*ContentOutcome, error)
	GetContent(ctx context.Context, userID, audioFileID string) (*model.LearningContent, error)
	DeleteContent(ctx context.Context, userID, audioFileID string) error
}

type contentService struct {
	contents    repository.LearningContentRepository
	transcripts repository.TranscriptRepository
	audioFiles  repository.AudioFileRepository
	usage       UsageService
	costs       CostService
	llm         LLMClient
	events      EventService
	logger      zerolog.Logger
}

func NewContentService(
	contents repository.LearningContentRepository,
	transcripts repository.TranscriptRepository,
	audioFiles repository.AudioFileRepository,
	usage UsageService,
	costs CostService,
	llm LLMClient,
	events EventService,
	logger zerolog.Logger,
) ContentService {
	return &contentService{
		contents:    contents,
		transcripts: transcripts,
		audioFiles:  audioFiles,
		usage:       usage,
		costs:       costs,
		llm:         llm,
		events:      events,
		logger:      logger.With().Str("service", "ContentService").Logger(),
	}
}

func (s *contentService) GetOrGenerate(ctx context.Context, userID, audioFileID string) (*ContentOutcome, error) {
	audio, err := s.audioFiles.GetAudioFileByID(ctx, audioFileID, userID)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, ErrAudioFileNotFound
	}

	existing, err := s.contents.GetContentByAudioFileID(ctx, audioFileID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ContentOutcome{Content: existing, Source: SourceDatabase}, nil
	}

	transcript, err := s.transcripts.GetTranscriptByAudioFileID(ctx, audioFileID, userID)
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		return nil, ErrTranscriptRequired
	}

	// Cost gate fails closed, same as the transcription path.
	snapshot, err := s.usage.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify usage quota: %w", err)
	}
	plan, ok := model.PlanByName(snapshot.PlanName)
	if !ok {
		plan = model.DefaultPlan()
	}
	decision, err := s.costs.CheckLimit(ctx, userID, llmCallEstimateUSD, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to verify cost limits: %w", err)
	}
	if !decision.Allowed {
		return nil, &CostLimitError{Message: decision.Message}
	}

	result, err := s.llm.GenerateLearningContent(ctx, transcript.Content)
	if err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}

	content := &model.LearningContent{
		ID:          uuid.NewString(),
		AudioFileID: audioFileID,
		UserID:      userID,
		Payload:     result.Payload,
		Model:       result.Model,
	}

	// The LLM call above was real regardless of what happens to this row,
	// so the spend is recorded on every path from here on.
	winner, err := s.contents.GetContentByAudioFileID(ctx, audioFileID, userID)
	if err == nil && winner != nil {
		s.recordSpend(ctx, userID, result.CostUSD, content.ID)
		return &ContentOutcome{Content: winner, Source: SourceDatabase}, nil
	}

	stored, inserted, err := s.contents.InsertContent(ctx, content)
	if err != nil {
		s.logger.Error().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to persist learning content")
		s.recordSpend(ctx, userID, result.CostUSD, content.ID)
		return &ContentOutcome{
			Content: content,
			Source:  SourceGenerated,
			Warning: "content generated but could not be saved; it may be regenerated on a later request",
		}, nil
	}
	if !inserted {
		// Lost the insert race; re-read the row that won.
		s.recordSpend(ctx, userID, result.CostUSD, content.ID)
		winner, err := s.contents.GetContentByAudioFileID(ctx, audioFileID, userID)
		if err != nil || winner == nil {
			s.logger.Error().Err(err).Str("audio_file_id", audioFileID).Msg("Failed to re-read learning content after losing insert race")
			return &ContentOutcome{
				Content: content,
				Source:  SourceGenerated,
				Warning: "content generated but could not be saved; it may be regenerated on a later request",
			}, nil
		}
		return &ContentOutcome{Content: winner, Source: SourceDatabase}, nil
	}

	s.recordSpend(ctx, userID, result.CostUSD, stored.ID)
	s.events.Publish(ctx, EventContentGenerated, userID, audioFileID, stored.ID)

	return &ContentOutcome{Content: stored, Source: SourceGenerated}, nil
}

// recordSpend settles the cost ledger for one LLM call. Failures are
// logged, never surfaced.
func (s *contentService) recordSpend(ctx context.Context, userID string, cost decimal.Decimal, referenceID string) {
	if cost.IsZero() {
		cost = llmCallEstimateUSD
	}
	if err := s.costs.RecordSpend(ctx, userID, cost, "content_generation", referenceID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record content generation spend")
	}
}

func (s *contentService) GetContent(ctx context.Context, userID, audioFileID string) (*model.LearningContent, error) {
	return s.contents.GetContentByAudioFileID(ctx, audioFileID, userID)
}

func (s *contentService) DeleteContent(ctx context.Context, userID, audioFileID string) error {
	return s.contents.DeleteContentByAudioFileID(ctx, audioFileID, userID)
}
