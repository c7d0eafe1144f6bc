package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"support_worker/core/port/out"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeStore struct {
	results []out.VectorSearchResult
	topK    int
}

func (s *fakeStore) Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]out.VectorSearchResult, error) {
	s.topK = topK
	return s.results, nil
}

type fakeAnswerer struct {
	snippets []string
	calls    int
}

func (a *fakeAnswerer) AnswerFromContext(ctx context.Context, question string, snippets []string) (string, error) {
	a.calls++
	a.snippets = snippets
	return "answer to " + question, nil
}

type fakeWriter struct {
	mu    sync.Mutex
	items []out.VectorItem
}

func (w *fakeWriter) Upsert(ctx context.Context, items []out.VectorItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, items...)
	return nil
}

type memoryCache struct {
	data    map[string][]byte
	readErr error
}

func (c *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.readErr != nil {
		return false, c.readErr
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

type countingKnowledge struct {
	calls int
}

func (k *countingKnowledge) Answer(ctx context.Context, query string) (string, error) {
	k.calls++
	return "fresh " + query, nil
}

func TestRetrieverAnswer(t *testing.T) {
	store := &fakeStore{results: []out.VectorSearchResult{
		{ID: "1", Score: 0.9, Content: "Shipping is free over $50."},
		{ID: "2", Score: 0.8, Content: "We ship to 30 countries."},
	}}
	answerer := &fakeAnswerer{}
	r := NewRetriever(&fakeEmbedder{}, store, answerer, RetrieverConfig{})

	got, err := r.Answer(context.Background(), "shipping cost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "answer to shipping cost" {
		t.Errorf("unexpected answer %q", got)
	}
	if store.topK != 3 {
		t.Errorf("expected default topK 3, got %d", store.topK)
	}
	if len(answerer.snippets) != 2 || answerer.snippets[1] != "We ship to 30 countries." {
		t.Errorf("unexpected snippets %v", answerer.snippets)
	}
}

func TestRetrieverNoResults(t *testing.T) {
	answerer := &fakeAnswerer{}
	r := NewRetriever(&fakeEmbedder{}, &fakeStore{}, answerer, RetrieverConfig{TopK: 5})

	got, err := r.Answer(context.Background(), "warranty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoInformationAnswer {
		t.Errorf("expected %q, got %q", NoInformationAnswer, got)
	}
	if answerer.calls != 0 {
		t.Error("answerer should not be called without context")
	}
}

func TestRetrieverEmbedError(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("quota")}, &fakeStore{}, &fakeAnswerer{}, RetrieverConfig{})
	if _, err := r.Answer(context.Background(), "q"); err == nil {
		t.Error("expected error")
	}
}

func TestCachedKnowledge(t *testing.T) {
	next := &countingKnowledge{}
	cache := &memoryCache{data: map[string][]byte{}}
	k := NewCachedKnowledge(next, cache, time.Hour)

	first, err := k.Answer(context.Background(), "Return  policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := k.Answer(context.Background(), "return policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", next.calls)
	}
	if first != second {
		t.Errorf("expected cached answer %q, got %q", first, second)
	}
}

func TestCachedKnowledgeReadFailureFallsThrough(t *testing.T) {
	next := &countingKnowledge{}
	k := NewCachedKnowledge(next, &memoryCache{data: map[string][]byte{}, readErr: errors.New("redis down")}, time.Hour)

	got, err := k.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fresh q" || next.calls != 1 {
		t.Errorf("expected backend answer, got %q after %d calls", got, next.calls)
	}
}

func TestCachedEmbedder(t *testing.T) {
	inner := &fakeEmbedder{}
	e := NewCachedEmbedder(inner, NewEmbeddingCache(2, time.Hour))

	for i := 0; i < 3; i++ {
		if _, err := e.Embed(context.Background(), "same query"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 embed call, got %d", inner.calls)
	}
	hits, misses, _ := e.cache.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits 1 miss, got %d %d", hits, misses)
	}
}

func TestEmbeddingCacheEvicts(t *testing.T) {
	c := NewEmbeddingCache(2, time.Hour)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})

	if len(c.cache) != 2 {
		t.Errorf("expected 2 entries, got %d", len(c.cache))
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry should be present")
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		size     int
		overlap  int
		expected []string
	}{
		{
			name:     "empty",
			text:     "   ",
			size:     10,
			overlap:  2,
			expected: nil,
		},
		{
			name:     "fits",
			text:     "short text",
			size:     100,
			overlap:  10,
			expected: []string{"short text"},
		},
		{
			name:     "windows with overlap",
			text:     strings.Repeat("a", 25),
			size:     10,
			overlap:  2,
			expected: []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 9)},
		},
		{
			name:     "sentence boundary",
			text:     "One. Two. Three.",
			size:     12,
			overlap:  0,
			expected: []string{"One. Two.", "Three."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkText(tt.text, tt.size, tt.overlap)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d chunks, got %d: %q", len(tt.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("chunk %d: expected %q, got %q", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestSourceTags(t *testing.T) {
	got := sourceTags("products/shoes/sizing.md")
	expected := []string{"products", "shoes", "md"}
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if got := sourceTags("faq.txt"); len(got) != 1 || got[0] != "txt" {
		t.Errorf("expected [txt], got %v", got)
	}
}

func TestChunkIDStable(t *testing.T) {
	if chunkID("faq.md", 0) != chunkID("faq.md", 0) {
		t.Error("chunk ids should be deterministic")
	}
	if chunkID("faq.md", 0) == chunkID("faq.md", 1) {
		t.Error("chunk ids should differ per chunk")
	}
}

func TestIndexDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "policies"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"faq.md":               "Shipping takes three days.",
		"policies/returns.txt": "Returns are accepted within 30 days.",
		"logo.png":             "binary",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writer := &fakeWriter{}
	ix := NewIndexer(&fakeEmbedder{}, writer, IndexerConfig{ChunkSize: 100, Overlap: 10, Concurrency: 2})
	stats, err := ix.IndexDir(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Files != 2 || stats.Chunks != 2 {
		t.Errorf("expected 2 files and 2 chunks, got %+v", stats)
	}
	var sources []string
	for _, item := range writer.items {
		sources = append(sources, item.Source)
		if len(item.Embedding) == 0 {
			t.Errorf("%s stored without embedding", item.Source)
		}
	}
	sort.Strings(sources)
	if strings.Join(sources, ",") != "faq.md,policies/returns.txt" {
		t.Errorf("unexpected sources %v", sources)
	}
}

func TestPgVector(t *testing.T) {
	if got := pgVector(nil); got != "[0]" {
		t.Errorf("expected [0], got %s", got)
	}
	if got := pgVector([]float32{1, 0.5}); got != "[1.000000,0.500000]" {
		t.Errorf("unexpected vector literal %s", got)
	}
}
