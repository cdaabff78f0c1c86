package validation

import (
	"context"
	"sync"
	"testing"

	"github.com/aurelienbran/docproc/internal/config"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/store"
)

type fakeSource struct {
	mu       sync.Mutex
	tasks    []docmodel.Task
	attempts map[string][]docmodel.Attempt
	errs     map[string][]docmodel.AttemptError
	samples  []docmodel.SampleRecord
}

func (f *fakeSource) ListTasks(ctx context.Context, filter store.TaskFilter) ([]docmodel.Task, error) {
	return f.tasks, nil
}

func (f *fakeSource) ListAttempts(ctx context.Context, taskID string) ([]docmodel.Attempt, error) {
	return f.attempts[taskID], nil
}

func (f *fakeSource) ListErrors(ctx context.Context, taskID string) ([]docmodel.AttemptError, error) {
	return f.errs[taskID], nil
}

func (f *fakeSource) AppendSample(ctx context.Context, sample docmodel.SampleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	return nil
}

func TestSamplerRunScoresAndPersists(t *testing.T) {
	src := &fakeSource{
		tasks: []docmodel.Task{
			{ID: "t1", Status: docmodel.StatusCompleted, Options: docmodel.TaskOptions{OCREngine: "genai"}},
			{ID: "t2", Status: docmodel.StatusCompleted, Options: docmodel.TaskOptions{OCREngine: "legacy_http"}},
		},
		attempts: map[string][]docmodel.Attempt{
			"t1": {{ID: "a1", EngineChain: []string{"genai"}, Confidence: map[string]float64{"text": 0.9}}},
			"t2": {{ID: "a2", EngineChain: []string{"legacy_http"}, Confidence: map[string]float64{"text": 0.2}}},
		},
		errs: map[string][]docmodel.AttemptError{},
	}
	detector := &Detector{Thresholds: config.DefaultThresholds()}
	sampler := &Sampler{Source: src, Detector: detector, SampleSize: 10, PoolSize: 10}

	report, err := sampler.Run(context.Background(), StrategyRandom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SampleSize != 2 {
		t.Fatalf("expected sample size 2, got %d", report.SampleSize)
	}
	if len(src.samples) != 2 {
		t.Fatalf("expected 2 persisted sample records, got %d", len(src.samples))
	}
	if report.ByEngine["genai"] != 0.9 {
		t.Fatalf("expected genai mean confidence 0.9, got %v", report.ByEngine["genai"])
	}
}

func TestSamplerRunEmptyPool(t *testing.T) {
	src := &fakeSource{}
	sampler := &Sampler{Source: src, Detector: &Detector{Thresholds: config.DefaultThresholds()}}
	report, err := sampler.Run(context.Background(), StrategyRecentFirst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SampleSize != 0 {
		t.Fatalf("expected empty sample, got %d", report.SampleSize)
	}
	if len(report.Recommendations) == 0 {
		t.Fatalf("expected a recommendation explaining the empty sample")
	}
}

func TestSelectSampleCapsAtSize(t *testing.T) {
	pool := make([]docmodel.Task, 20)
	for i := range pool {
		pool[i] = docmodel.Task{ID: "t"}
	}
	selected := selectSample(pool, StrategyRandom, 5)
	if len(selected) != 5 {
		t.Fatalf("expected 5 selected tasks, got %d", len(selected))
	}
}
