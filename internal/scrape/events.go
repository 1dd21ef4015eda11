package scrape

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RunSink receives the summary of every finished bulk run.
type RunSink interface {
	RunCompleted(ctx context.Context, s *RunSummary) error
}

// RunEvents publishes run summaries to a capped redis stream so external
// consumers can follow scrape activity without polling the service.
type RunEvents struct {
	client redis.UniversalClient
	stream string
}

func NewRunEvents(client redis.UniversalClient, stream string) *RunEvents {
	return &RunEvents{client: client, stream: stream}
}

func (e *RunEvents) RunCompleted(ctx context.Context, s *RunSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	err = e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{
			"event":   "scrape.completed",
			"summary": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}
