package selector

import (
	"testing"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

func TestClassifySimplePDF(t *testing.T) {
	m := docmodel.DocumentMetrics{
		MIMEType:     "application/pdf",
		HasText:      true,
		TextDensity:  0.5,
		ImageDensity: 0.02,
	}
	if got := Classify(m, DefaultThresholds()); got != docmodel.ComplexitySimple {
		t.Fatalf("Classify() = %v, want simple", got)
	}
}

func TestClassifyDamagedImage(t *testing.T) {
	m := docmodel.DocumentMetrics{
		MIMEType: "image/jpeg",
		Contrast: 0.1,
		Sharpness: 0.9,
	}
	if got := Classify(m, DefaultThresholds()); got != docmodel.ComplexityDamaged {
		t.Fatalf("Classify() = %v, want damaged", got)
	}
}

func TestClassifyTechnicalImage(t *testing.T) {
	m := docmodel.DocumentMetrics{
		MIMEType:    "image/png",
		Contrast:    0.9,
		Sharpness:   0.9,
		EdgeDensity: 0.8,
	}
	if got := Classify(m, DefaultThresholds()); got != docmodel.ComplexityTechnical {
		t.Fatalf("Classify() = %v, want technical", got)
	}
}

func TestClassifyBumpsOnTableContours(t *testing.T) {
	m := docmodel.DocumentMetrics{
		MIMEType:         "application/pdf",
		HasText:          true,
		TextDensity:      0.5,
		ImageDensity:     0.02,
		HasTableContours: true,
	}
	if got := Classify(m, DefaultThresholds()); got != docmodel.ComplexityMedium {
		t.Fatalf("Classify() = %v, want medium (bumped from simple)", got)
	}
}

func TestNeedsOCRPlainText(t *testing.T) {
	m := docmodel.DocumentMetrics{MIMEType: "text/plain"}
	if NeedsOCR(m) {
		t.Fatalf("expected plain text to skip OCR")
	}
}

func TestSelectPreferSpeedSortsByCost(t *testing.T) {
	m := docmodel.DocumentMetrics{MIMEType: "application/pdf", HasText: true, TextDensity: 0.5, ImageDensity: 0.02, PageCount: 1}
	prefs := Select(m, []string{"genai", "legacy_http"}, "speed", DefaultThresholds())
	if len(prefs) != 2 {
		t.Fatalf("expected 2 preferences, got %d", len(prefs))
	}
	if prefs[0].Engine != "legacy_http" {
		t.Fatalf("expected legacy_http first under speed strategy, got %s", prefs[0].Engine)
	}
}

func TestSelectPreferAccuracyPreservesComplexityOrder(t *testing.T) {
	m := docmodel.DocumentMetrics{MIMEType: "application/pdf", HasText: true, TextDensity: 0.5, ImageDensity: 0.02, PageCount: 1}
	prefs := Select(m, []string{"genai", "legacy_http"}, "accuracy", DefaultThresholds())
	if prefs[0].Engine != "legacy_http" {
		t.Fatalf("expected legacy_http first (complexity table order for simple), got %s", prefs[0].Engine)
	}
}

func TestSelectUnavailableEngineOmitted(t *testing.T) {
	m := docmodel.DocumentMetrics{MIMEType: "application/pdf", HasText: true, TextDensity: 0.5, ImageDensity: 0.02, PageCount: 1}
	prefs := Select(m, []string{"legacy_http"}, "accuracy", DefaultThresholds())
	if len(prefs) != 1 || prefs[0].Engine != "legacy_http" {
		t.Fatalf("expected only legacy_http, got %+v", prefs)
	}
}

func TestSelectNoOCRNeeded(t *testing.T) {
	m := docmodel.DocumentMetrics{MIMEType: "text/plain"}
	prefs := Select(m, []string{"genai"}, "accuracy", DefaultThresholds())
	if prefs != nil {
		t.Fatalf("expected nil preferences for plain text, got %+v", prefs)
	}
}
