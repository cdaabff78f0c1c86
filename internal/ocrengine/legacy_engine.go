package ocrengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// legacyResponse mirrors the wire format of a standalone OCR microservice
// (the teacher's deprecated DeepSeek-OCR sidecar protocol).
type legacyResponse struct {
	Success        bool          `json:"success"`
	Text           string        `json:"text"`
	Chunks         []legacyChunk `json:"chunks"`
	Pages          int           `json:"pages"`
	ProcessingTime float64       `json:"processing_time"`
	HasTables      bool          `json:"has_tables"`
	HasImages      bool          `json:"has_images"`
	Error          string        `json:"error,omitempty"`
}

type legacyChunk struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Page       int      `json:"page"`
}

type legacyHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// LegacyEngine adapts an external OCR microservice's HTTP API to
// docmodel.OCREngine, for deployments that still run a standalone OCR
// sidecar alongside the managed Gemini engine.
type LegacyEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewLegacyEngine builds a LegacyEngine against baseURL with timeout as
// the request deadline.
func NewLegacyEngine(baseURL string, timeout time.Duration) *LegacyEngine {
	return &LegacyEngine{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *LegacyEngine) Name() string { return "legacy_http" }

// IsHealthy reports whether the sidecar is reachable and has a loaded model.
func (e *LegacyEngine) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("building health request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("sidecar unhealthy: status %d", resp.StatusCode)
	}
	var health legacyHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("decoding health response: %w", err)
	}
	return health.Status == "healthy" && health.ModelLoaded, nil
}

// Extract submits the chunk's source file as multipart form data, per the
// sidecar's documented /ocr/extract contract.
func (e *LegacyEngine) Extract(ctx context.Context, req docmodel.OCRRequest) (docmodel.OCRResult, error) {
	file, err := os.Open(req.SourcePath)
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("opening %s: %w", req.SourcePath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fw, err := writer.CreateFormFile("file", req.SourcePath)
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("copying file data: %w", err)
	}
	writer.WriteField("extract_tables", boolStr(req.ExtractTables))
	writer.WriteField("extract_images", boolStr(req.ExtractImages))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("building ocr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return docmodel.OCRResult{}, fmt.Errorf("ocr request failed: status %d: %s", resp.StatusCode, body)
	}

	var parsed legacyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return docmodel.OCRResult{}, fmt.Errorf("decoding ocr response: %w", err)
	}
	if !parsed.Success {
		return docmodel.OCRResult{}, fmt.Errorf("ocr processing failed: %s", parsed.Error)
	}

	return docmodel.OCRResult{
		Text:           parsed.Text,
		PagesProcessed: parsed.Pages,
		Confidence:     map[string]float64{"text": averageConfidence(parsed.Chunks)},
		HasTables:      parsed.HasTables,
		HasImages:      parsed.HasImages,
		ProcessingTime: time.Since(start),
	}, nil
}

func averageConfidence(chunks []legacyChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range chunks {
		total += c.Confidence
	}
	return total / float64(len(chunks))
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
