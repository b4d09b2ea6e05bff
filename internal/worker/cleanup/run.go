package cleanup

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/config"
	"app/internal/pgmq"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// Run starts the storage cleanup worker. It drains the cleanup queue,
// retrying object-store deletions with exponential backoff and moving jobs
// that exhaust their retries to the dead-letter queue.
func Run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, client *pgmq.Client, storage service.StorageService) error {
	queue := cfg.CleanupQueueName
	logger.Info().Str("queue", queue).Msg("Starting storage cleanup worker")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down storage cleanup worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.CleanupPollTimeoutSec, cfg.CleanupPollMaxMsg)
		if err != nil {
			logger.Error().Err(err).Msg("Error reading cleanup queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		logger.Info().Int64("msg_id", msg.ID).Msgf("Received cleanup job: %s", string(msg.Data))

		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			logger.Error().Err(err).Msg("Failed to unmarshal cleanup payload; deleting message")
			client.Delete(ctx, queue, []int64{msg.ID})
			continue
		}
		if job.Prefix == "" {
			logger.Warn().Int64("msg_id", msg.ID).Msg("Cleanup job has no prefix; deleting message")
			client.Delete(ctx, queue, []int64{msg.ID})
			continue
		}

		// Retry the deletion with exponential backoff.
		backoff := time.Duration(cfg.CleanupBackoffInitialSec) * time.Second
		var delErr error
		for attempt := 1; attempt <= cfg.CleanupMaxRetries; attempt++ {
			start := time.Now()
			delErr = storage.DeletePrefix(ctx, job.Prefix)
			if delErr == nil {
				logger.Info().
					Str("prefix", job.Prefix).
					Str("duration", time.Since(start).String()).
					Msg("Storage cleanup succeeded")
				break
			}
			logger.Error().Err(delErr).Int("attempt", attempt).Str("prefix", job.Prefix).Msg("Storage cleanup failed, retrying")
			time.Sleep(backoff)
			backoff *= 2
			if backoff > time.Duration(cfg.CleanupBackoffMaxSec)*time.Second {
				backoff = time.Duration(cfg.CleanupBackoffMaxSec) * time.Second
			}
		}
		if delErr != nil {
			// Park the job on the dead-letter queue for manual inspection.
			dlq := cfg.CleanupDeadLetterQueueName
			if msgBytes, err := json.Marshal(job); err == nil {
				if err := client.Send(ctx, dlq, msgBytes); err != nil {
					logger.Error().Err(err).Str("dlq", dlq).Msg("Failed to send cleanup job to dead-letter queue")
				}
			} else {
				logger.Error().Err(err).Msg("Failed to marshal cleanup job for dead-letter queue")
			}
			if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
				logger.Error().Err(err).Msg("Error deleting cleanup message after failure")
			}
			logger.Warn().
				Int("attempts", cfg.CleanupMaxRetries).
				Str("prefix", job.Prefix).
				Err(delErr).
				Msg("Exhausted all cleanup retries; moving job to DLQ")
			continue
		}

		if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
			logger.Error().Err(err).Msg("Error deleting cleanup message")
		}
	}
}
