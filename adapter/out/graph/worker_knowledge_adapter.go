package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"support_worker/core/port/out"
)

// =============================================================================
// Neo4j Knowledge Store
// =============================================================================

const knowledgeIndex = "knowledge_embedding_index"

// KnowledgeAdapter stores knowledge chunks as :Document nodes with a vector
// index. It implements both out.VectorStore and out.VectorWriter.
type KnowledgeAdapter struct {
	driver     neo4j.DriverWithContext
	dbName     string
	dimensions int
}

// NewKnowledgeAdapter creates a Neo4j knowledge adapter for embeddings of the
// given dimension.
func NewKnowledgeAdapter(driver neo4j.DriverWithContext, dbName string, dimensions int) *KnowledgeAdapter {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &KnowledgeAdapter{driver: driver, dbName: dbName, dimensions: dimensions}
}

// EnsureIndexes creates the vector index and source lookup index.
func (a *KnowledgeAdapter) EnsureIndexes(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	queries := []string{
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS "+
			"FOR (d:Document) ON (d.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			knowledgeIndex, a.dimensions),
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE INDEX document_source_idx IF NOT EXISTS FOR (d:Document) ON (d.source)`,
	}

	for _, query := range queries {
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Search returns the topK documents closest to embedding.
func (a *KnowledgeAdapter) Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]out.VectorSearchResult, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: a.dbName,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	query := `
		CALL db.index.vector.queryNodes($index, $topK, $embedding)
		YIELD node, score
		WHERE score >= $minScore
		RETURN node.id AS id, score, node.source AS source, node.content AS content
		ORDER BY score DESC
	`
	result, err := session.Run(ctx, query, searchParams(embedding, topK, minScore))
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}

	var results []out.VectorSearchResult
	for result.Next(ctx) {
		record := result.Record()
		results = append(results, out.VectorSearchResult{
			ID:      getStringValue(record, "id"),
			Score:   getFloatValue(record, "score"),
			Source:  getStringValue(record, "source"),
			Content: getStringValue(record, "content"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read knowledge results: %w", err)
	}
	return results, nil
}

// Upsert merges chunks by id.
func (a *KnowledgeAdapter) Upsert(ctx context.Context, items []out.VectorItem) error {
	if len(items) == 0 {
		return nil
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := `
		UNWIND $items AS item
		MERGE (d:Document {id: item.id})
		SET d.source = item.source,
			d.chunk = item.chunk,
			d.content = item.content,
			d.tags = item.tags,
			d.embedding = item.embedding,
			d.updated_at = timestamp()
	`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{"items": upsertRows(items)})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge: %w", err)
	}
	return nil
}

// searchParams binds the vector query. topK defaults to 3.
func searchParams(embedding []float32, topK int, minScore float64) map[string]any {
	if topK <= 0 {
		topK = 3
	}
	return map[string]any{
		"index":     knowledgeIndex,
		"topK":      topK,
		"embedding": toFloat64(embedding),
		"minScore":  minScore,
	}
}

// upsertRows converts chunks to the UNWIND rows. Nil tags become an empty
// list since Neo4j cannot store null properties.
func upsertRows(items []out.VectorItem) []map[string]any {
	rows := make([]map[string]any, len(items))
	for i, item := range items {
		tags := item.Tags
		if tags == nil {
			tags = []string{}
		}
		rows[i] = map[string]any{
			"id":        item.ID,
			"source":    item.Source,
			"chunk":     item.Chunk,
			"content":   item.Content,
			"tags":      tags,
			"embedding": toFloat64(item.Embedding),
		}
	}
	return rows
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

var (
	_ out.VectorStore  = (*KnowledgeAdapter)(nil)
	_ out.VectorWriter = (*KnowledgeAdapter)(nil)
)
