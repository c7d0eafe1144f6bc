package graph

import (
	"testing"

	"support_worker/core/port/out"
)

func TestToFloat64(t *testing.T) {
	got := toFloat64([]float32{0.5, -1, 2})
	expected := []float64{0.5, -1, 2}
	if len(got) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(got))
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("index %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
	if got := toFloat64(nil); len(got) != 0 {
		t.Errorf("expected empty slice, got %v", got)
	}
}

func TestNewKnowledgeAdapterDefaults(t *testing.T) {
	a := NewKnowledgeAdapter(nil, "neo4j", 0)
	if a.dimensions != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", a.dimensions)
	}
}

func TestSearchParams(t *testing.T) {
	tests := []struct {
		name     string
		topK     int
		minScore float64
		wantTopK int
	}{
		{"explicit top k", 5, 0.7, 5},
		{"zero top k", 0, 0, 3},
		{"negative top k", -2, 0.1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := searchParams([]float32{0.25, 1}, tt.topK, tt.minScore)

			if params["index"] != knowledgeIndex {
				t.Errorf("expected index %q, got %v", knowledgeIndex, params["index"])
			}
			if params["topK"] != tt.wantTopK {
				t.Errorf("expected topK %d, got %v", tt.wantTopK, params["topK"])
			}
			if params["minScore"] != tt.minScore {
				t.Errorf("expected minScore %v, got %v", tt.minScore, params["minScore"])
			}
			emb, ok := params["embedding"].([]float64)
			if !ok || len(emb) != 2 || emb[0] != 0.25 || emb[1] != 1 {
				t.Errorf("expected float64 embedding [0.25 1], got %#v", params["embedding"])
			}
		})
	}
}

func TestUpsertRows(t *testing.T) {
	tests := []struct {
		name     string
		item     out.VectorItem
		wantTags []string
	}{
		{
			name:     "tagged chunk",
			item:     out.VectorItem{ID: "faq.md#0", Source: "faq.md", Chunk: 0, Content: "Shipping takes 3 days.", Tags: []string{"faq"}, Embedding: []float32{1, 2}},
			wantTags: []string{"faq"},
		},
		{
			name:     "nil tags",
			item:     out.VectorItem{ID: "faq.md#1", Source: "faq.md", Chunk: 1, Content: "Returns within 30 days."},
			wantTags: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := upsertRows([]out.VectorItem{tt.item})
			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(rows))
			}
			row := rows[0]

			if row["id"] != tt.item.ID || row["source"] != tt.item.Source || row["content"] != tt.item.Content {
				t.Errorf("unexpected row %v", row)
			}
			if row["chunk"] != tt.item.Chunk {
				t.Errorf("expected chunk %d, got %v", tt.item.Chunk, row["chunk"])
			}
			tags, ok := row["tags"].([]string)
			if !ok || tags == nil {
				t.Fatalf("expected non-nil []string tags, got %#v", row["tags"])
			}
			if len(tags) != len(tt.wantTags) {
				t.Errorf("expected tags %v, got %v", tt.wantTags, tags)
			}
			emb, ok := row["embedding"].([]float64)
			if !ok || len(emb) != len(tt.item.Embedding) {
				t.Errorf("expected %d float64 values, got %#v", len(tt.item.Embedding), row["embedding"])
			}
		})
	}

	if rows := upsertRows(nil); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
