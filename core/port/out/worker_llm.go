package out

import (
	"context"

	"support_worker/core/domain"
)

// ResponderLLM is the language-model port used by the workflow steps.
type ResponderLLM interface {
	Categorize(ctx context.Context, body string) (domain.Category, error)
	// GenerateQueries returns at most three knowledge-base questions.
	GenerateQueries(ctx context.Context, body string) ([]string, error)
	// WriteDraft writes a reply from the assembled context and the
	// prior drafts and feedback for the same email.
	WriteDraft(ctx context.Context, context string, history []string) (string, error)
	Proofread(ctx context.Context, original, draft string) (*domain.Review, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
