package validation

import (
	"testing"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

func TestPlanSwitchesEngineOnFirstRetry(t *testing.T) {
	r := &Reprocessor{MaxAttempts: 3, EngineFallbackChain: []string{"genai", "legacy_http"}}
	attempts := []docmodel.Attempt{{EngineChain: []string{"genai"}}}
	plan, ok := r.Plan(attempts, nil)
	if !ok {
		t.Fatalf("expected a plan within max attempts")
	}
	if plan.Engine != "legacy_http" {
		t.Fatalf("expected engine switch away from genai, got %q", plan.Engine)
	}
	if plan.DPIMultiplier <= 1.0 {
		t.Fatalf("expected a DPI bump on retry, got %v", plan.DPIMultiplier)
	}
}

func TestPlanPreservesSpecializedEngine(t *testing.T) {
	r := &Reprocessor{
		MaxAttempts:         3,
		EngineFallbackChain: []string{"genai", "legacy_http"},
		SpecializedEngines:  map[string]string{"formula": "genai"},
	}
	attempts := []docmodel.Attempt{{EngineChain: []string{"genai"}}}
	plan, ok := r.Plan(attempts, []string{"formula"})
	if !ok {
		t.Fatalf("expected a plan within max attempts")
	}
	if plan.Engine != "genai" {
		t.Fatalf("expected specialized engine preserved, got %q", plan.Engine)
	}
}

func TestPlanStopsAfterMaxAttempts(t *testing.T) {
	r := &Reprocessor{MaxAttempts: 2}
	attempts := []docmodel.Attempt{{}, {}}
	_, ok := r.Plan(attempts, nil)
	if ok {
		t.Fatalf("expected reprocessing to stop after max attempts")
	}
}

func TestBestAttemptPicksHighestConfidence(t *testing.T) {
	attempts := []docmodel.Attempt{
		{ID: "a1", Confidence: map[string]float64{"text": 0.4}},
		{ID: "a2", Confidence: map[string]float64{"text": 0.9}},
		{ID: "a3", Confidence: map[string]float64{"text": 0.2}},
	}
	best, ok := BestAttempt(attempts)
	if !ok || best.ID != "a2" {
		t.Fatalf("expected a2 as best attempt, got %+v ok=%v", best, ok)
	}
}

func TestBestAttemptEmptyReturnsFalse(t *testing.T) {
	_, ok := BestAttempt(nil)
	if ok {
		t.Fatalf("expected ok=false for empty attempts")
	}
}
