// Package orchestrator implements OrchestratorFacade: the thin
// driver that wires TaskStore, OCRSelector, ChunkedProcessor, PriorityQueue,
// RetrySupervisor, RelationalChunker, ValidationPipeline and
// NotificationHub into the end-to-end submission -> completion pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aurelienbran/docproc/internal/chunker"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/metrics"
	"github.com/aurelienbran/docproc/internal/notify"
	"github.com/aurelienbran/docproc/internal/queue"
	"github.com/aurelienbran/docproc/internal/selector"
	"github.com/aurelienbran/docproc/internal/store"
	"github.com/aurelienbran/docproc/internal/validation"
)

// Store is the narrow TaskStore surface the facade drives; it is a superset
// of chunkedproc.Checkpointer and retry.ErrorRecorder so a *store.Store can
// be handed straight to those components.
type Store interface {
	PutTask(ctx context.Context, task docmodel.Task) error
	GetTask(ctx context.Context, id string) (docmodel.Task, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]docmodel.Task, error)
	PutAttempt(ctx context.Context, attempt docmodel.Attempt) error
	ListAttempts(ctx context.Context, taskID string) ([]docmodel.Attempt, error)
	AppendError(ctx context.Context, taskErr docmodel.AttemptError) error
	PutValidationReport(ctx context.Context, report docmodel.ValidationReport) error
	PutCheckpoint(ctx context.Context, cp docmodel.Checkpoint) error
	LoadLatestCheckpoint(ctx context.Context, taskID string) (docmodel.Checkpoint, error)
}

// Facade wires every component for one document-processing run.
type Facade struct {
	Store      Store
	Queue      *queue.Dispatcher
	Engines    map[string]docmodel.OCREngine
	Chunker    *chunker.Chunker
	Detector   *validation.Detector
	Reprocessor *validation.Reprocessor
	Hub        *notify.Hub
	Index      docmodel.IndexSink
	Metrics    *metrics.Registry

	SelectorThresholds selector.Thresholds
	ChunkPoolSize      int
	MaxRetryAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	AttemptTimeout     time.Duration
	MaxReprocessAttempts int

	tracer trace.Tracer
}

// New builds a Facade. Call Enqueue/Pause/Resume/Cancel/GetStatus/ListTasks
// from CLI/API callers, and Run from the asynq handler.
func New(f Facade) *Facade {
	f.tracer = otel.Tracer("docproc-orchestrator")
	return &f
}

// Enqueue creates a new Task and admits it into its priority queue.
func (f *Facade) Enqueue(ctx context.Context, inputPath string, opts docmodel.TaskOptions, priority docmodel.Priority) (docmodel.Task, error) {
	task := docmodel.Task{
		ID:        uuid.NewString(),
		InputPath: inputPath,
		Options:   opts,
		Priority:  priority,
		AddedAt:   time.Now().UTC(),
		Status:    docmodel.StatusQueued,
	}
	if err := f.Store.PutTask(ctx, task); err != nil {
		return docmodel.Task{}, fmt.Errorf("persisting new task: %w", err)
	}
	if err := f.Queue.Enqueue(task, f.MaxRetryAttempts, f.AttemptTimeout); err != nil {
		return docmodel.Task{}, fmt.Errorf("enqueueing task %s: %w", task.ID, err)
	}
	if f.Metrics != nil {
		f.Metrics.ObserveEnqueue(priority)
	}
	f.publish(task.ID, docmodel.EventTaskCreated, nil)
	return task, nil
}

// GetStatus returns the current Task record.
func (f *Facade) GetStatus(ctx context.Context, taskID string) (docmodel.Task, error) {
	return f.Store.GetTask(ctx, taskID)
}

// ListTasks returns tasks matching filter.
func (f *Facade) ListTasks(ctx context.Context, filter store.TaskFilter) ([]docmodel.Task, error) {
	return f.Store.ListTasks(ctx, filter)
}

// Pause transitions a Task to Paused and removes it from its asynq queue.
func (f *Facade) Pause(ctx context.Context, taskID string) error {
	task, err := f.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := f.transition(ctx, &task, docmodel.StatusPaused); err != nil {
		return err
	}
	return f.Queue.Pause(task)
}

// Resume transitions a Paused Task back to Queued.
func (f *Facade) Resume(ctx context.Context, taskID string) error {
	task, err := f.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := f.transition(ctx, &task, docmodel.StatusQueued); err != nil {
		return err
	}
	return f.Queue.Resume(task, f.MaxRetryAttempts, f.AttemptTimeout)
}

// Cancel transitions a Task to Cancelled and signals the queue layer.
func (f *Facade) Cancel(ctx context.Context, taskID string) error {
	task, err := f.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := f.transition(ctx, &task, docmodel.StatusCancelled); err != nil {
		return err
	}
	return f.Queue.Cancel(task)
}

// QueueStats returns the current per-priority queue depths.
func (f *Facade) QueueStats(ctx context.Context) ([]queue.Stats, error) {
	stats, err := f.Queue.QueueStats()
	if err != nil {
		return nil, err
	}
	if f.Metrics != nil {
		for _, s := range stats {
			f.Metrics.SetQueueDepth(s.Priority, s.Queued, s.Active)
		}
	}
	return stats, nil
}

func (f *Facade) publish(taskID string, kind docmodel.EventKind, payload interface{}) {
	if f.Hub == nil {
		return
	}
	f.Hub.Publish(docmodel.Event{TaskID: taskID, Kind: kind, Timestamp: time.Now().UTC(), Payload: payload})
}

// detectMIMEType guesses a document's MIME type from its extension, the way
// the teacher's upload handlers classify incoming files.
func detectMIMEType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
