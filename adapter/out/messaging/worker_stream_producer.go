// Package messaging publishes workflow events to Redis Streams.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"support_worker/core/domain"
	"support_worker/core/port/out"
)

// Stream suffixes, appended to the configured prefix.
const (
	StreamOutcomes = "outcomes"
	StreamRuns     = "runs"

	// streams are trimmed to roughly this many entries
	defaultMaxLen = 10000
)

// OutcomePublisher implements out.RunReporter by appending every outcome and
// run summary to a Redis stream, for downstream consumers such as dashboards.
type OutcomePublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// NewOutcomePublisher creates a publisher writing to "<prefix>:outcomes" and
// "<prefix>:runs".
func NewOutcomePublisher(client *redis.Client, prefix string) *OutcomePublisher {
	if prefix == "" {
		prefix = "support"
	}
	return &OutcomePublisher{client: client, prefix: prefix, maxLen: defaultMaxLen}
}

// Stream returns the full stream name for a suffix.
func (p *OutcomePublisher) Stream(suffix string) string {
	return p.prefix + ":" + suffix
}

func (p *OutcomePublisher) Record(ctx context.Context, outcome *domain.EmailOutcome) error {
	return p.publish(ctx, p.Stream(StreamOutcomes), string(outcome.Action), outcome)
}

func (p *OutcomePublisher) SaveSummary(ctx context.Context, summary *domain.RunSummary) error {
	return p.publish(ctx, p.Stream(StreamRuns), "summary", summary)
}

// publish publishes an event to a stream using go-redis.
func (p *OutcomePublisher) publish(ctx context.Context, stream, kind string, event interface{}) error {
	values, err := streamValues(kind, event)
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

func streamValues(kind string, event interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": kind,
		"data": string(data),
	}, nil
}

var _ out.RunReporter = (*OutcomePublisher)(nil)
