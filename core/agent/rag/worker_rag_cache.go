// Package rag answers questions from the product knowledge base and
// maintains the vector index behind it.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"support_worker/core/port/out"
	"support_worker/pkg/logger"
)

// =============================================================================
// Embedding Cache
// =============================================================================

// EmbeddingCache keeps recent query embeddings in memory.
type EmbeddingCache struct {
	cache   map[string]*cachedEmbedding
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration

	hits   int64
	misses int64
}

type cachedEmbedding struct {
	embedding []float32
	createdAt time.Time
}

// NewEmbeddingCache creates a cache holding at most maxSize entries for ttl.
func NewEmbeddingCache(maxSize int, ttl time.Duration) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmbeddingCache{
		cache:   make(map[string]*cachedEmbedding),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves an embedding from cache.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := hashText(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok || time.Since(entry.createdAt) > c.ttl {
		delete(c.cache, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.embedding, true
}

// Set stores an embedding in cache.
func (c *EmbeddingCache) Set(text string, embedding []float32) {
	key := hashText(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxSize {
		c.evictOldest()
	}
	c.cache[key] = &cachedEmbedding{embedding: embedding, createdAt: time.Now()}
}

// Stats returns cache statistics.
func (c *EmbeddingCache) Stats() (hits, misses int64, hitRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits = c.hits
	misses = c.misses
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

func (c *EmbeddingCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.cache {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

func hashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

// CachedEmbedder wraps an embedder with an EmbeddingCache.
type CachedEmbedder struct {
	next  out.Embedder
	cache *EmbeddingCache
}

func NewCachedEmbedder(next out.Embedder, cache *EmbeddingCache) *CachedEmbedder {
	if cache == nil {
		cache = NewEmbeddingCache(0, 0)
	}
	return &CachedEmbedder{next: next, cache: cache}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if embedding, ok := e.cache.Get(text); ok {
		return embedding, nil
	}
	embedding, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedBatch is not cached; it is only used for indexing.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.EmbedBatch(ctx, texts)
}

// =============================================================================
// Answer Cache (Redis)
// =============================================================================

// CachedKnowledge memoizes answers in a shared cache. Cache failures fall
// through to the wrapped knowledge base.
type CachedKnowledge struct {
	next  out.KnowledgeBase
	cache out.Cache
	ttl   time.Duration
}

func NewCachedKnowledge(next out.KnowledgeBase, cache out.Cache, ttl time.Duration) *CachedKnowledge {
	return &CachedKnowledge{next: next, cache: cache, ttl: ttl}
}

type cachedAnswer struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

func answerKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return "answer:" + hex.EncodeToString(sum[:])
}

func (k *CachedKnowledge) Answer(ctx context.Context, query string) (string, error) {
	key := answerKey(query)

	var hit cachedAnswer
	found, err := k.cache.GetJSON(ctx, key, &hit)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("answer cache read failed")
	} else if found {
		logger.WithContext(ctx).Debug("answer cache hit for %q", query)
		return hit.Answer, nil
	}

	answer, err := k.next.Answer(ctx, query)
	if err != nil {
		return "", err
	}

	if err := k.cache.SetJSON(ctx, key, cachedAnswer{Query: query, Answer: answer}, k.ttl); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("answer cache write failed")
	}
	return answer, nil
}
