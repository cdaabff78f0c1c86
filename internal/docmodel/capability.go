package docmodel

import (
	"context"
	"time"
)

// DocumentMetrics describes a document's measurable characteristics, the
// input to OCRSelector's decision table.
type DocumentMetrics struct {
	MIMEType        string
	PageCount       int
	HasText         bool
	TextDensity     float64 // extractable characters per page / 3000, capped at 1
	ImageDensity    float64
	Contrast        float64
	Sharpness       float64
	EdgeDensity     float64
	HasTableContours bool
	Resolution      int // DPI
}

// Complexity is the document complexity tag used by OCRSelector.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityMedium      Complexity = "medium"
	ComplexityComplex     Complexity = "complex"
	ComplexityTechnical   Complexity = "technical"
	ComplexityHandwritten Complexity = "handwritten"
	ComplexityDamaged     Complexity = "damaged"
)

// EnginePreference is one ranked entry of OCRSelector's output.
type EnginePreference struct {
	Engine        string
	EstimatedCost time.Duration
}

// OCRRequest is the unit of work handed to an OCREngine for a single chunk.
type OCRRequest struct {
	TaskID      string
	ChunkIndex  int
	SourcePath  string
	Language    string
	Engine      string
	ExtractTables bool
	ExtractImages bool
}

// OCRResult is what an OCREngine returns for one chunk.
type OCRResult struct {
	Text           string
	PagesProcessed int
	Confidence     map[string]float64 // per-metric confidence: text/formula/schema/table
	HasTables      bool
	HasImages      bool
	ProcessingTime time.Duration
}

// OCREngine is the external collaborator interface for OCR/AI backends
// (Tesseract-like, cloud Document AI). Out of scope — this module
// only depends on the interface and ships adapters for concrete engines.
type OCREngine interface {
	Name() string
	Extract(ctx context.Context, req OCRRequest) (OCRResult, error)
}

// VisionEngine is the external collaborator interface for cloud Vision AI
// backends, used for image-heavy or handwritten/damaged complexity tags.
type VisionEngine interface {
	Name() string
	AnalyzeImage(ctx context.Context, path string) (OCRResult, error)
}

// Converter is the external collaborator interface for file-format
// converters (PDF->text, Office->text). Out of scope.
type Converter interface {
	Convert(ctx context.Context, sourcePath string) (text string, err error)
}

// IndexSink is the external collaborator interface for the vector
// store/embedding service, called by OrchestratorFacade on terminal success.
type IndexSink interface {
	Index(ctx context.Context, chunks []TextChunk) error
}

// Embedder is the external collaborator interface for the embeddings
// provider RelationalChunker consults when embeddings are configured.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
