package ocrengine

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// GenAIEngine is the primary docmodel.OCREngine/VisionEngine adapter,
// backed by Gemini's document-understanding endpoint. Calls are gated by
// a rate limiter and wrapped in a circuit breaker so a degraded upstream
// trips before RetrySupervisor has to absorb every individual failure.
type GenAIEngine struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

// NewGenAIEngine dials the Gemini API and wires the breaker/limiter the
// way the teacher's GeminiClient does for chat completions.
func NewGenAIEngine(ctx context.Context, apiKey, model string, maxFailures uint32, openTimeout time.Duration) (*GenAIEngine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GenAIEngine",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= float64(maxFailures)/float64(maxFailures+2)
		},
	})

	return &GenAIEngine{
		client:      client,
		model:       model,
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(5), 10),
	}, nil
}

func (e *GenAIEngine) Name() string { return "genai" }

// Extract uploads the chunk's source file and asks Gemini to transcribe it
// verbatim, mirroring the teacher's extractWithGemini system instruction.
func (e *GenAIEngine) Extract(ctx context.Context, req docmodel.OCRRequest) (docmodel.OCRResult, error) {
	tracer := otel.Tracer("ocrengine")
	ctx, span := tracer.Start(ctx, "genai_engine.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("ocr.task_id", req.TaskID),
		attribute.Int("ocr.chunk_index", req.ChunkIndex),
	)

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.extract(ctx, req)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("ocr.error", true))
		if err == gobreaker.ErrOpenState {
			return docmodel.OCRResult{}, fmt.Errorf("genai engine circuit open: %w", err)
		}
		return docmodel.OCRResult{}, err
	}

	out := result.(docmodel.OCRResult)
	out.ProcessingTime = time.Since(start)
	return out, nil
}

func (e *GenAIEngine) extract(ctx context.Context, req docmodel.OCRRequest) (docmodel.OCRResult, error) {
	content, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("reading source %s: %w", req.SourcePath, err)
	}

	mimeType := "application/pdf"
	if t := mime.TypeByExtension(filepath.Ext(req.SourcePath)); t != "" {
		mimeType = t
	}
	file, err := e.client.UploadFile(ctx, "", bytes.NewReader(content), &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("uploading to genai: %w", err)
	}
	defer e.client.DeleteFile(ctx, file.Name)

	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0.1)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(`Extract ALL text content from this document exactly as it appears, preserving structure, headers, footers, tables and equations. Do not summarize or interpret.`)},
	}

	resp, err := model.GenerateContent(ctx, genai.FileData{URI: file.URI}, genai.Text("Transcribe this document."))
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("genai generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return docmodel.OCRResult{}, fmt.Errorf("genai returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	return docmodel.OCRResult{
		Text:           text,
		PagesProcessed: 1,
		Confidence:     map[string]float64{"text": 0.9},
	}, nil
}

// AnalyzeImage satisfies docmodel.VisionEngine for image-heavy or
// handwritten/damaged complexity tags, reusing the same upload flow with
// an image MIME type.
func (e *GenAIEngine) AnalyzeImage(ctx context.Context, path string) (docmodel.OCRResult, error) {
	return e.Extract(ctx, docmodel.OCRRequest{SourcePath: path, Engine: e.Name()})
}

// Close releases the underlying genai client.
func (e *GenAIEngine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
