// Package chunker implements RelationalChunker: it turns the flat
// text produced by ChunkedProcessor into TextChunks carrying structural
// references, per-chunk metadata, and a relation graph (previous/next,
// semantic similarity, shared structural references).
package chunker

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// Config bounds the segmentation and similarity behaviour.
type Config struct {
	MaxChunkSize         int     // characters, default 2000
	Overlap              int     // characters carried from the previous chunk's tail
	SimilarityThreshold  float64 // cosine threshold for semantic_similarity edges, default 0.7
	EmbeddingsEnabled    bool
}

// DefaultConfig matches the design-level defaults for the chunker.
func DefaultConfig() Config {
	return Config{MaxChunkSize: 2000, Overlap: 200, SimilarityThreshold: 0.7}
}

// Chunker turns raw OCR text into TextChunks. Embedder is optional; when nil,
// embeddings are skipped and semantic_similarity edges are never produced.
type Chunker struct {
	Embedder docmodel.Embedder
	cfg      Config
	cache    *lru.Cache[string, []float32]
}

// New builds a Chunker. cacheSize bounds the embedding side-cache; 0 disables caching.
func New(embedder docmodel.Embedder, cfg Config, cacheSize int) (*Chunker, error) {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 2000
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.7
	}
	var cache *lru.Cache[string, []float32]
	if cacheSize > 0 {
		c, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, err
		}
		cache = c
	}
	return &Chunker{Embedder: embedder, cfg: cfg, cache: cache}, nil
}

// Chunk runs the full five-step algorithm over text and returns the
// resulting TextChunks with relations populated. Empty input yields an
// empty, non-nil-error slice.
func (c *Chunker) Chunk(ctx context.Context, runID, text string) ([]docmodel.TextChunk, error) {
	if len(text) == 0 {
		return nil, nil
	}

	elements := scanStructuralElements(text)
	units := segment(text, c.cfg.MaxChunkSize, c.cfg.Overlap)
	if len(units) == 0 {
		return nil, nil
	}

	chunks := make([]docmodel.TextChunk, len(units))
	for i, u := range units {
		meta := buildMetadata(u.text, elements, u.start, u.end)
		id := contentHash(u.text)

		if c.cfg.EmbeddingsEnabled && c.Embedder != nil {
			if _, err := c.embed(ctx, id, u.text); err == nil {
				meta.HasEmbedding = true
			}
		}

		chunks[i] = docmodel.TextChunk{
			ID:       id,
			RunID:    runID,
			Text:     u.text,
			Position: i,
			Metadata: meta,
		}
	}

	c.linkRelations(ctx, chunks)
	return chunks, nil
}

// embed returns the cached embedding for id, computing and storing it via
// c.Embedder on a cache miss.
func (c *Chunker) embed(ctx context.Context, id, text string) ([]float32, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(id); ok {
			return v, nil
		}
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(id, v)
	}
	return v, nil
}
