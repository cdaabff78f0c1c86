package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aurelienbran/docproc/internal/config"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/store"
	"github.com/aurelienbran/docproc/internal/validation"
	"go.opentelemetry.io/otel"
)

type fakeStore struct {
	mu          sync.Mutex
	tasks       map[string]docmodel.Task
	attempts    map[string][]docmodel.Attempt
	errs        []docmodel.AttemptError
	reports     []docmodel.ValidationReport
	checkpoints map[string]docmodel.Checkpoint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:       make(map[string]docmodel.Task),
		attempts:    make(map[string][]docmodel.Attempt),
		checkpoints: make(map[string]docmodel.Checkpoint),
	}
}

func (f *fakeStore) PutTask(ctx context.Context, task docmodel.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (docmodel.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id], nil
}

func (f *fakeStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]docmodel.Task, error) {
	return nil, nil
}

func (f *fakeStore) PutAttempt(ctx context.Context, attempt docmodel.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[attempt.TaskID] = append(f.attempts[attempt.TaskID], attempt)
	return nil
}

func (f *fakeStore) ListAttempts(ctx context.Context, taskID string) ([]docmodel.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[taskID], nil
}

func (f *fakeStore) AppendError(ctx context.Context, taskErr docmodel.AttemptError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, taskErr)
	return nil
}

func (f *fakeStore) PutValidationReport(ctx context.Context, report docmodel.ValidationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeStore) PutCheckpoint(ctx context.Context, cp docmodel.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoints[cp.TaskID] = cp
	return nil
}

func (f *fakeStore) LoadLatestCheckpoint(ctx context.Context, taskID string) (docmodel.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp, ok := f.checkpoints[taskID]
	if !ok {
		return docmodel.Checkpoint{}, os.ErrNotExist
	}
	return cp, nil
}

type fakeEngine struct {
	name       string
	confidence map[string]float64
	text       string
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Extract(ctx context.Context, req docmodel.OCRRequest) (docmodel.OCRResult, error) {
	return docmodel.OCRResult{
		Text:           e.text,
		PagesProcessed: 1,
		Confidence:     e.confidence,
	}, nil
}

func newTestFacade(t *testing.T, engine docmodel.OCREngine, st *fakeStore) *Facade {
	t.Helper()
	return New(Facade{
		Store:   st,
		Engines: map[string]docmodel.OCREngine{"genai": engine},
		Detector: &validation.Detector{
			Thresholds: config.DefaultThresholds(),
		},
		Reprocessor: &validation.Reprocessor{
			MaxAttempts:         3,
			EngineFallbackChain: []string{"genai"},
		},
		MaxReprocessAttempts: 2,
		MaxRetryAttempts:     1,
	})
}

func writeTempInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("writing temp input: %v", err)
	}
	return path
}

func TestRunCompletesOnAcceptableConfidence(t *testing.T) {
	st := newFakeStore()
	engine := &fakeEngine{name: "genai", text: "extracted text", confidence: map[string]float64{"text": 0.95}}
	f := newTestFacade(t, engine, st)

	task := docmodel.Task{
		ID:        "task-1",
		InputPath: writeTempInput(t),
		Options:   docmodel.DefaultTaskOptions(),
		Status:    docmodel.StatusQueued,
	}
	if err := st.PutTask(context.Background(), task); err != nil {
		t.Fatalf("seeding task: %v", err)
	}

	if err := f.Run(context.Background(), "task-1"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	final, _ := st.GetTask(context.Background(), "task-1")
	if final.Status != docmodel.StatusCompleted {
		t.Fatalf("expected status completed, got %s", final.Status)
	}
	if final.BestAttemptID == "" {
		t.Fatalf("expected a best attempt to be recorded")
	}
	if len(st.attempts["task-1"]) != 1 {
		t.Fatalf("expected exactly one attempt on acceptable confidence, got %d", len(st.attempts["task-1"]))
	}
}

func TestRunReprocessesOnCriticalConfidenceUntilAttemptCeiling(t *testing.T) {
	st := newFakeStore()
	engine := &fakeEngine{name: "genai", text: "extracted text", confidence: map[string]float64{"text": 0.95}}
	f := newTestFacade(t, engine, st)
	f.MaxReprocessAttempts = 2

	// The registered engine is swapped for one that always scores 0.1,
	// inside the critical band, so every attempt requires reprocessing and
	// the loop stops only at the Facade's MaxReprocessAttempts ceiling of 2.
	// A global confidence that low then routes the task to manual review.
	lowConfEngine := &fakeEngine{name: "genai", text: "extracted text", confidence: map[string]float64{"text": 0.1}}
	f.Engines["genai"] = lowConfEngine

	task := docmodel.Task{
		ID:        "task-2",
		InputPath: writeTempInput(t),
		Options:   docmodel.DefaultTaskOptions(),
		Status:    docmodel.StatusQueued,
	}
	if err := st.PutTask(context.Background(), task); err != nil {
		t.Fatalf("seeding task: %v", err)
	}

	if err := f.Run(context.Background(), "task-2"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(st.attempts["task-2"]) != f.MaxReprocessAttempts {
		t.Fatalf("expected %d attempts after hitting the reprocess ceiling, got %d", f.MaxReprocessAttempts, len(st.attempts["task-2"]))
	}
	if len(st.reports) != f.MaxReprocessAttempts {
		t.Fatalf("expected a validation report per attempt, got %d", len(st.reports))
	}
}

func TestRunFailsWhenNoEngineRegistered(t *testing.T) {
	st := newFakeStore()
	f := New(Facade{
		Store:   st,
		Engines: map[string]docmodel.OCREngine{},
		Detector: &validation.Detector{
			Thresholds: config.DefaultThresholds(),
		},
		Reprocessor:          &validation.Reprocessor{MaxAttempts: 1},
		MaxReprocessAttempts: 1,
	})

	task := docmodel.Task{
		ID:        "task-3",
		InputPath: writeTempInput(t),
		Options:   docmodel.TaskOptions{OCREngine: "missing"},
		Status:    docmodel.StatusQueued,
	}
	if err := st.PutTask(context.Background(), task); err != nil {
		t.Fatalf("seeding task: %v", err)
	}

	if err := f.Run(context.Background(), "task-3"); err == nil {
		t.Fatalf("expected Run to fail when the configured engine isn't registered")
	}

	final, _ := st.GetTask(context.Background(), "task-3")
	if final.Status != docmodel.StatusFailed {
		t.Fatalf("expected status failed, got %s", final.Status)
	}
}

func init() {
	// Avoid a nil global tracer provider across parallel test binaries.
	otel.SetTracerProvider(otel.GetTracerProvider())
}
