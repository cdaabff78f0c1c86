package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func TestChunkEmptyInputReturnsNoChunks(t *testing.T) {
	c, err := New(nil, DefaultConfig(), 0)
	if err != nil {
		t.Fatalf("unexpected error building chunker: %v", err)
	}
	chunks, err := c.Chunk(context.Background(), "run-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestChunkShortTextIsSingleChunkNoOverlap(t *testing.T) {
	c, err := New(nil, Config{MaxChunkSize: 500, Overlap: 100}, 0)
	if err != nil {
		t.Fatalf("unexpected error building chunker: %v", err)
	}
	text := "A short paragraph well under the chunk size limit."
	chunks, err := c.Chunk(context.Background(), "run-1", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("expected unmodified text in single chunk, got %q", chunks[0].Text)
	}
}

func TestChunkDeterministicIDs(t *testing.T) {
	c, err := New(nil, DefaultConfig(), 0)
	if err != nil {
		t.Fatalf("unexpected error building chunker: %v", err)
	}
	text := "Reference to figure 3 appears here.\n\nSecond paragraph mentions figure 3 again."
	first, err := c.Chunk(context.Background(), "run-1", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Chunk(context.Background(), "run-2", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected same chunk count across runs, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("expected stable content-hash ids across runs, got %q and %q", first[i].ID, second[i].ID)
		}
	}
}

func TestChunkLinksPreviousNextChain(t *testing.T) {
	c, err := New(nil, Config{MaxChunkSize: 20, Overlap: 0}, 0)
	if err != nil {
		t.Fatalf("unexpected error building chunker: %v", err)
	}
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks, err := c.Chunk(context.Background(), "run-1", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for chain test, got %d", len(chunks))
	}
	if !hasRelation(chunks[0].Relations, docmodel.RelationNext, chunks[1].ID) {
		t.Fatalf("expected chunk 0 to have a next edge to chunk 1")
	}
	if !hasRelation(chunks[1].Relations, docmodel.RelationPrevious, chunks[0].ID) {
		t.Fatalf("expected chunk 1 to have a previous edge to chunk 0")
	}
}

func TestChunkSharedStructuralReference(t *testing.T) {
	c, err := New(nil, Config{MaxChunkSize: 30, Overlap: 0}, 0)
	if err != nil {
		t.Fatalf("unexpected error building chunker: %v", err)
	}
	text := "Figure 3 shows the setup.\n\nUnrelated filler paragraph text goes here.\n\nFigure 3 is referenced again."
	chunks, err := c.Chunk(context.Background(), "run-1", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var withRef []int
	for i, chunk := range chunks {
		for _, ref := range chunk.Metadata.StructuralRefs {
			if ref.ID == "figure_3" {
				withRef = append(withRef, i)
			}
		}
	}
	if len(withRef) < 2 {
		t.Fatalf("expected figure_3 to be detected in at least 2 chunks, got %d", len(withRef))
	}
	if !hasRelation(chunks[withRef[0]].Relations, docmodel.RelationSharedRef, chunks[withRef[1]].ID) {
		t.Fatalf("expected shared_reference edge between chunks mentioning figure_3")
	}
}

func TestChunkSemanticSimilarityEdge(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	cfg := Config{MaxChunkSize: 20, Overlap: 0, SimilarityThreshold: 0.9, EmbeddingsEnabled: true}
	c, err := New(embedder, cfg, 4)
	if err != nil {
		t.Fatalf("unexpected error building chunker: %v", err)
	}
	text := "Alpha paragraph one.\n\nBeta paragraph two."
	chunks, err := c.Chunk(context.Background(), "run-1", text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].Metadata.HasEmbedding {
		t.Fatalf("expected has_embedding true when embeddings are enabled")
	}
	if !hasRelation(chunks[0].Relations, docmodel.RelationSemantic, chunks[1].ID) {
		t.Fatalf("expected a semantic_similarity edge when every chunk embeds to the same vector")
	}
}

func TestSlidingWindowSplitsOversizedUnit(t *testing.T) {
	u := unit{text: strings.Repeat("x", 100), start: 0, end: 100}
	windows := slidingWindowSplit(u, 30)
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows of 30 chars, got %d", len(windows))
	}
	if windows[len(windows)-1].end != 100 {
		t.Fatalf("expected last window to end at original text length")
	}
}

func hasRelation(relations []docmodel.Relation, kind docmodel.RelationKind, targetID string) bool {
	for _, r := range relations {
		if r.Kind == kind && r.TargetID == targetID {
			return true
		}
	}
	return false
}
