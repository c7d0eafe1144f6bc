package rag

import (
	"context"

	"support_worker/core/agent/llm"
)

// Embedder turns text into vectors with the configured embedding model.
type Embedder struct {
	client *llm.Client
}

func NewEmbedder(client *llm.Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embedding(ctx, text)
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.EmbeddingBatch(ctx, texts)
}
