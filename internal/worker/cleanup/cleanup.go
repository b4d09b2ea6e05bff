package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/pgmq"
)

// Job describes a storage prefix whose objects failed inline deletion and
// must be removed by the worker.
type Job struct {
	UserID   string    `json:"user_id"`
	Prefix   string    `json:"prefix"`
	QueuedAt time.Time `json:"queued_at"`
}

// Enqueuer pushes cleanup jobs onto the pgmq queue.
type Enqueuer struct {
	client *pgmq.Client
	queue  string
}

// NewEnqueuer returns an Enqueuer for the given queue.
func NewEnqueuer(client *pgmq.Client, queue string) *Enqueuer {
	return &Enqueuer{client: client, queue: queue}
}

// EnqueuePrefix queues the deletion of every object under prefix.
func (e *Enqueuer) EnqueuePrefix(ctx context.Context, userID, prefix string) error {
	payload, err := json.Marshal(Job{
		UserID:   userID,
		Prefix:   prefix,
		QueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cleanup job: %w", err)
	}
	return e.client.Send(ctx, e.queue, payload)
}
