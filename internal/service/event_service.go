package service

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/pubsub"

	"github.com/rs/zerolog"
)

// Pipeline event types published after successful processing steps.
const (
	EventTranscriptionCompleted = "transcription.completed"
	EventContentGenerated       = "content.generated"
	EventAccountDeleted         = "account.deleted"
)

type pipelineEvent struct {
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	AudioFileID string    `json:"audio_file_id,omitempty"`
	ResourceID  string    `json:"resource_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventService publishes pipeline events. Publishing is best effort: a
// failure is logged and never surfaced to the caller.
type EventService interface {
	Publish(ctx context.Context, eventType, userID, audioFileID, resourceID string)
}

type eventService struct {
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// NewEventService wraps the given publisher. A nil publisher yields a
// no-op service, used when Pub/Sub is not configured.
func NewEventService(publisher pubsub.Publisher, topic string, logger zerolog.Logger) EventService {
	return &eventService{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "EventService").Logger(),
	}
}

func (s *eventService) Publish(ctx context.Context, eventType, userID, audioFileID, resourceID string) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	payload, err := json.Marshal(pipelineEvent{
		Type:        eventType,
		UserID:      userID,
		AudioFileID: audioFileID,
		ResourceID:  resourceID,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to marshal pipeline event")
		return
	}
	id, err := s.publisher.Publish(ctx, s.topic, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to publish pipeline event")
		return
	}
	s.logger.Info().Str("event_type", eventType).Str("message_id", id).Msg("Published pipeline event")
}
