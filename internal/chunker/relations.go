package chunker

import (
	"context"
	"math"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// linkRelations populates previous/next, semantic_similarity, and
// shared_<element-type> edges across chunks, mutating
// chunks in place.
func (c *Chunker) linkRelations(ctx context.Context, chunks []docmodel.TextChunk) {
	linkChain(chunks)
	c.linkSemanticSimilarity(ctx, chunks)
	linkSharedReferences(chunks)
}

// linkChain builds the linear previous/next chain at strength 1.0.
func linkChain(chunks []docmodel.TextChunk) {
	for i := range chunks {
		if i > 0 {
			chunks[i].Relations = append(chunks[i].Relations, docmodel.Relation{
				Kind: docmodel.RelationPrevious, TargetID: chunks[i-1].ID, Strength: 1.0,
			})
		}
		if i < len(chunks)-1 {
			chunks[i].Relations = append(chunks[i].Relations, docmodel.Relation{
				Kind: docmodel.RelationNext, TargetID: chunks[i+1].ID, Strength: 1.0,
			})
		}
	}
}

// linkSemanticSimilarity adds an edge between any two chunks whose
// embedding cosine similarity is at or above the configured threshold.
// Chunks without an embedding (HasEmbedding false, or no Embedder
// configured) are skipped entirely.
func (c *Chunker) linkSemanticSimilarity(ctx context.Context, chunks []docmodel.TextChunk) {
	if !c.cfg.EmbeddingsEnabled || c.Embedder == nil {
		return
	}

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		if !chunk.Metadata.HasEmbedding {
			continue
		}
		v, err := c.embed(ctx, chunk.ID, chunk.Text)
		if err != nil {
			continue
		}
		vectors[i] = v
	}

	for i := range chunks {
		if vectors[i] == nil {
			continue
		}
		for j := i + 1; j < len(chunks); j++ {
			if vectors[j] == nil {
				continue
			}
			sim := cosineSimilarity(vectors[i], vectors[j])
			if sim >= c.cfg.SimilarityThreshold {
				chunks[i].Relations = append(chunks[i].Relations, docmodel.Relation{
					Kind: docmodel.RelationSemantic, TargetID: chunks[j].ID, Strength: sim,
				})
				chunks[j].Relations = append(chunks[j].Relations, docmodel.Relation{
					Kind: docmodel.RelationSemantic, TargetID: chunks[i].ID, Strength: sim,
				})
			}
		}
	}
}

// linkSharedReferences adds a shared_<element-type> edge between every pair
// of chunks that mention the same structural element id.
func linkSharedReferences(chunks []docmodel.TextChunk) {
	byElementID := make(map[string][]int)
	elementType := make(map[string]string)
	for i, chunk := range chunks {
		for _, ref := range chunk.Metadata.StructuralRefs {
			byElementID[ref.ID] = append(byElementID[ref.ID], i)
			elementType[ref.ID] = ref.Type
		}
	}

	for elemID, indexes := range byElementID {
		if len(indexes) < 2 {
			continue
		}
		refType := elementType[elemID]
		for a := 0; a < len(indexes); a++ {
			for b := a + 1; b < len(indexes); b++ {
				i, j := indexes[a], indexes[b]
				chunks[i].Relations = append(chunks[i].Relations, docmodel.Relation{
					Kind: docmodel.RelationSharedRef, TargetID: chunks[j].ID, Strength: 1.0, RefType: refType,
				})
				chunks[j].Relations = append(chunks[j].Relations, docmodel.Relation{
					Kind: docmodel.RelationSharedRef, TargetID: chunks[i].ID, Strength: 1.0, RefType: refType,
				})
			}
		}
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
