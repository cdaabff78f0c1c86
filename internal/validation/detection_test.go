package validation

import (
	"testing"

	"github.com/aurelienbran/docproc/internal/config"
	"github.com/aurelienbran/docproc/internal/docmodel"
)

func TestDetectAcceptableConfidenceNoIssues(t *testing.T) {
	d := &Detector{Thresholds: config.DefaultThresholds()}
	attempt := docmodel.Attempt{Confidence: map[string]float64{"text": 0.9}}
	report := d.Detect("task-1", "attempt-1", attempt)
	if len(report.Issues) != 0 {
		t.Fatalf("expected no issues for acceptable confidence, got %d", len(report.Issues))
	}
	if report.RequiresReprocessing || report.RequiresManualReview {
		t.Fatalf("expected no reprocessing/manual review flags")
	}
}

func TestDetectCriticalTriggersReprocessing(t *testing.T) {
	d := &Detector{Thresholds: config.DefaultThresholds()}
	attempt := docmodel.Attempt{Confidence: map[string]float64{"text": 0.1}}
	report := d.Detect("task-1", "attempt-1", attempt)
	if report.CountCritical() != 1 {
		t.Fatalf("expected 1 critical issue, got %d", report.CountCritical())
	}
	if !report.RequiresReprocessing {
		t.Fatalf("expected critical issue to require reprocessing")
	}
}

func TestDetectCriticalFormulaTriggersManualReview(t *testing.T) {
	d := &Detector{Thresholds: config.DefaultThresholds()}
	attempt := docmodel.Attempt{Confidence: map[string]float64{"formula": 0.1}}
	report := d.Detect("task-1", "attempt-1", attempt)
	if !report.RequiresManualReview {
		t.Fatalf("expected critical formula issue to require manual review")
	}
}

func TestDetectThreeSevereTriggersReprocessing(t *testing.T) {
	d := &Detector{Thresholds: config.DefaultThresholds()}
	attempt := docmodel.Attempt{Confidence: map[string]float64{
		"text": 0.45, "formula": 0.50, "schema": 0.45, "table": 0.45,
	}}
	report := d.Detect("task-1", "attempt-1", attempt)
	if report.CountSevere() < 3 {
		t.Fatalf("expected at least 3 severe issues, got %d", report.CountSevere())
	}
	if !report.RequiresReprocessing {
		t.Fatalf("expected 3+ severe issues to require reprocessing")
	}
}
