// Package pubsub publishes terminal job events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Notifier publishes JSON-encoded JobEvents to one topic.
type Notifier struct {
	publisher *pubsub.Publisher
}

// New creates a Notifier for the provided topic publisher.
func New(publisher *pubsub.Publisher) (*Notifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher is required")
	}
	return &Notifier{publisher: publisher}, nil
}

// Notify publishes event and waits for the server to acknowledge it.
// Attributes carry the routing fields so subscribers can filter without
// decoding the payload.
func (n *Notifier) Notify(ctx context.Context, event recipe.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"job_id":  event.JobID,
		"user_id": event.UserID,
		"status":  string(event.Status),
	}
	if event.ErrorCode != "" {
		attrs["error_code"] = string(event.ErrorCode)
	}
	result := n.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (n *Notifier) Stop() {
	n.publisher.Stop()
}
