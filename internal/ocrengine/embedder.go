package ocrengine

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GenAIEmbedder adapts the Gemini embeddings model to docmodel.Embedder, the
// optional embedding provider RelationalChunker consults for
// semantic_similarity relations.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder dials a dedicated genai client for embeddings calls.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating embeddings client: %w", err)
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

// Embed returns the embedding vector for text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model := e.client.EmbeddingModel(e.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// Close releases the underlying client.
func (e *GenAIEmbedder) Close() error {
	return e.client.Close()
}
