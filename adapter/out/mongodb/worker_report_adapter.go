package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"support_worker/core/domain"
	"support_worker/core/port/out"
)

// =============================================================================
// MongoDB Run Reporter
// =============================================================================

const (
	collectionOutcomes  = "email_outcomes"
	collectionSummaries = "run_summaries"

	reportRetention = 90 * 24 * time.Hour
)

// ReportAdapter implements out.RunReporter using MongoDB.
type ReportAdapter struct {
	outcomes  *mongo.Collection
	summaries *mongo.Collection
}

// NewReportAdapter creates a new MongoDB report adapter.
func NewReportAdapter(db *mongo.Database) *ReportAdapter {
	return &ReportAdapter{
		outcomes:  db.Collection(collectionOutcomes),
		summaries: db.Collection(collectionSummaries),
	}
}

// EnsureIndexes creates necessary indexes for both collections.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	outcomeIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}, {Key: "email_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "thread_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "action", Value: 1}, {Key: "completed_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "completed_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(reportRetention.Seconds())), // TTL index
		},
	}
	if _, err := a.outcomes.Indexes().CreateMany(ctx, outcomeIndexes); err != nil {
		return fmt.Errorf("outcome indexes: %w", err)
	}

	summaryIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
	}
	if _, err := a.summaries.Indexes().CreateMany(ctx, summaryIndexes); err != nil {
		return fmt.Errorf("summary indexes: %w", err)
	}
	return nil
}

// Record upserts the outcome for one email of a run.
func (a *ReportAdapter) Record(ctx context.Context, outcome *domain.EmailOutcome) error {
	opts := options.Replace().SetUpsert(true)

	if _, err := a.outcomes.ReplaceOne(ctx, outcomeFilter(outcome), outcome, opts); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// SaveSummary upserts the summary of a run.
func (a *ReportAdapter) SaveSummary(ctx context.Context, summary *domain.RunSummary) error {
	opts := options.Replace().SetUpsert(true)

	if _, err := a.summaries.ReplaceOne(ctx, summaryFilter(summary), summary, opts); err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// LatestSummary returns the most recent run summary, or nil when none exist.
func (a *ReportAdapter) LatestSummary(ctx context.Context) (*domain.RunSummary, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})

	var summary domain.RunSummary
	err := a.summaries.FindOne(ctx, bson.M{}, opts).Decode(&summary)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run summary: %w", err)
	}
	return &summary, nil
}

// outcomeFilter matches the unique (run_id, email_id) index, so recording the
// same email twice in a run replaces the earlier document.
func outcomeFilter(o *domain.EmailOutcome) bson.M {
	return bson.M{"run_id": o.RunID, "email_id": o.EmailID}
}

func summaryFilter(s *domain.RunSummary) bson.M {
	return bson.M{"run_id": s.RunID}
}

var _ out.RunReporter = (*ReportAdapter)(nil)
