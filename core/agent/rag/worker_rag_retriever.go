package rag

import (
	"context"
	"fmt"

	"support_worker/core/port/out"
	"support_worker/pkg/logger"
)

// NoInformationAnswer is returned when the knowledge base has nothing on a query.
const NoInformationAnswer = "No relevant information found."

// Answerer writes an answer from retrieved snippets.
type Answerer interface {
	AnswerFromContext(ctx context.Context, question string, snippets []string) (string, error)
}

// Retriever answers questions by embedding them, pulling the closest
// knowledge chunks and asking the model to answer from those chunks.
type Retriever struct {
	embedder out.Embedder
	store    out.VectorStore
	answerer Answerer
	topK     int
	minScore float64
}

type RetrieverConfig struct {
	TopK     int
	MinScore float64
}

func NewRetriever(embedder out.Embedder, store out.VectorStore, answerer Answerer, cfg RetrieverConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		answerer: answerer,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
	}
}

// Retrieve returns the closest chunks for query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]out.VectorSearchResult, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.Search(ctx, embedding, r.topK, r.minScore)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

// Answer implements out.KnowledgeBase.
func (r *Retriever) Answer(ctx context.Context, query string) (string, error) {
	results, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		logger.WithContext(ctx).Debug("no knowledge found for %q", query)
		return NoInformationAnswer, nil
	}

	snippets := make([]string, len(results))
	for i, res := range results {
		snippets[i] = res.Content
	}

	answer, err := r.answerer.AnswerFromContext(ctx, query, snippets)
	if err != nil {
		return "", fmt.Errorf("answer query: %w", err)
	}
	return answer, nil
}
