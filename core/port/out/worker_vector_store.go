package out

import "context"

// =============================================================================
// KnowledgeBase / VectorStore (pgvector or Neo4j)
// =============================================================================

// KnowledgeBase answers a single question from the product knowledge base.
type KnowledgeBase interface {
	Answer(ctx context.Context, query string) (string, error)
}

// VectorStore defines similarity search over knowledge chunks.
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]VectorSearchResult, error)
}

// VectorWriter stores knowledge chunks.
type VectorWriter interface {
	Upsert(ctx context.Context, items []VectorItem) error
}

// VectorSearchResult represents a search result with similarity score.
type VectorSearchResult struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
	Content string  `json:"content"`
}

// VectorItem represents a knowledge chunk for storage.
type VectorItem struct {
	ID        string
	Source    string
	Chunk     int
	Content   string
	Tags      []string
	Embedding []float32
}
