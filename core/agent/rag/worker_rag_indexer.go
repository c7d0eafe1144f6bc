package rag

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"support_worker/core/port/out"
	"support_worker/pkg/logger"
)

// SQLWriter upserts knowledge chunks through database/sql.
type SQLWriter struct {
	db *sqlx.DB
}

func NewSQLWriter(db *sqlx.DB) *SQLWriter {
	return &SQLWriter{db: db}
}

type documentRow struct {
	ID        string         `db:"id"`
	Source    string         `db:"source"`
	Chunk     int            `db:"chunk"`
	Content   string         `db:"content"`
	Tags      pq.StringArray `db:"tags"`
	Embedding string         `db:"embedding"`
}

const upsertDocumentSQL = `
	INSERT INTO knowledge_documents (id, source, chunk, content, tags, embedding, updated_at)
	VALUES (:id, :source, :chunk, :content, :tags, CAST(:embedding AS vector), NOW())
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content,
		tags = EXCLUDED.tags,
		embedding = EXCLUDED.embedding,
		updated_at = NOW()
`

// Upsert implements out.VectorWriter.
func (w *SQLWriter) Upsert(ctx context.Context, items []out.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		row := documentRow{
			ID:        item.ID,
			Source:    item.Source,
			Chunk:     item.Chunk,
			Content:   item.Content,
			Tags:      pq.StringArray(item.Tags),
			Embedding: pgVector(item.Embedding),
		}
		if _, err := tx.NamedExecContext(ctx, upsertDocumentSQL, row); err != nil {
			return fmt.Errorf("upsert %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

// SourceCount is one row of the per-source chunk summary.
type SourceCount struct {
	Source string `db:"source" json:"source"`
	Chunks int    `db:"chunks" json:"chunks"`
}

// Sources lists indexed sources with their chunk counts.
func (w *SQLWriter) Sources(ctx context.Context) ([]SourceCount, error) {
	var rows []SourceCount
	err := w.db.SelectContext(ctx, &rows,
		`SELECT source, COUNT(*) AS chunks FROM knowledge_documents GROUP BY source ORDER BY source`)
	return rows, err
}

// Indexer loads text files from disk into the knowledge base.
type Indexer struct {
	embedder    out.Embedder
	writer      out.VectorWriter
	chunkSize   int
	overlap     int
	concurrency int
}

type IndexerConfig struct {
	ChunkSize   int
	Overlap     int
	Concurrency int
}

func NewIndexer(embedder out.Embedder, writer out.VectorWriter, cfg IndexerConfig) *Indexer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Indexer{
		embedder:    embedder,
		writer:      writer,
		chunkSize:   cfg.ChunkSize,
		overlap:     cfg.Overlap,
		concurrency: cfg.Concurrency,
	}
}

// IndexStats summarizes an indexing pass.
type IndexStats struct {
	Files  int64
	Chunks int64
}

var indexableExt = map[string]bool{".txt": true, ".md": true}

// IndexDir indexes every .txt and .md file under root.
func (ix *Indexer) IndexDir(ctx context.Context, root string) (IndexStats, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && indexableExt[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return IndexStats{}, err
	}

	var stats IndexStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			n, err := ix.IndexText(gctx, filepath.ToSlash(rel), string(data))
			if err != nil {
				return err
			}
			atomic.AddInt64(&stats.Files, 1)
			atomic.AddInt64(&stats.Chunks, int64(n))
			logger.WithFields(map[string]any{"source": rel, "chunks": n}).Info("Indexed %s", rel)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// IndexText chunks, embeds and stores one document. It returns the number
// of chunks written.
func (ix *Indexer) IndexText(ctx context.Context, source, text string) (int, error) {
	chunks := chunkText(text, ix.chunkSize, ix.overlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", source, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", source, len(embeddings), len(chunks))
	}

	tags := sourceTags(source)
	items := make([]out.VectorItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = out.VectorItem{
			ID:        chunkID(source, i),
			Source:    source,
			Chunk:     i,
			Content:   chunk,
			Tags:      tags,
			Embedding: embeddings[i],
		}
	}
	if err := ix.writer.Upsert(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// chunkID is stable across runs so re-indexing overwrites.
func chunkID(source string, chunk int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(chunk))).String()
}

// sourceTags derives tags from the directory names and file type.
func sourceTags(source string) []string {
	var tags []string
	dir := filepath.ToSlash(filepath.Dir(source))
	if dir != "." {
		tags = append(tags, strings.Split(dir, "/")...)
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(source)), "."); ext != "" {
		tags = append(tags, ext)
	}
	return tags
}

// chunkText splits text into windows of at most size runes, each starting
// overlap runes before the end of the previous one. Windows prefer to end
// at a paragraph or sentence boundary in their second half.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := boundary(runes[start:end]); cut > size/2 {
			end = start + cut
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// boundary returns the index just past the last paragraph break or
// sentence end in window, or 0 when there is none.
func boundary(window []rune) int {
	s := string(window)
	if i := strings.LastIndex(s, "\n\n"); i >= 0 {
		return len([]rune(s[:i])) + 2
	}
	if i := strings.LastIndexAny(s, ".!?\n"); i >= 0 {
		return len([]rune(s[:i])) + 1
	}
	return 0
}
