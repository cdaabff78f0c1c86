// Package ocrengine provides concrete docmodel.OCREngine/VisionEngine
// adapters and the document-metrics extraction OCRSelector decides from.
package ocrengine

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// ExtractMetrics computes the DocumentMetrics OCRSelector decides
// from. For PDFs it uses ledongthuc/pdf to measure page count and text
// density directly; for image inputs the caller supplies contrast/sharpness
// computed upstream.
func ExtractMetrics(path, mimeType string) (docmodel.DocumentMetrics, error) {
	if mimeType != "application/pdf" {
		return docmodel.DocumentMetrics{MIMEType: mimeType}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return docmodel.DocumentMetrics{}, fmt.Errorf("reading %s: %w", path, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return docmodel.DocumentMetrics{}, fmt.Errorf("opening pdf %s: %w", path, err)
	}

	pages := reader.NumPage()
	textChars := 0
	hasText := false

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		trimmed := strings.TrimSpace(text)
		if trimmed != "" {
			hasText = true
		}
		textChars += len(trimmed)
	}

	density := 0.0
	if pages > 0 {
		// crude proxy: characters per page, normalized against a page that
		// is "dense" at ~3000 characters of body text
		density = float64(textChars) / float64(pages) / 3000.0
		if density > 1 {
			density = 1
		}
	}

	return docmodel.DocumentMetrics{
		MIMEType:    mimeType,
		PageCount:   pages,
		HasText:     hasText,
		TextDensity: density,
	}, nil
}
