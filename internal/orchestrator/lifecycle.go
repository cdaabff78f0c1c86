package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aurelienbran/docproc/internal/chunkedproc"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/logger"
	"github.com/aurelienbran/docproc/internal/retry"
)

// transition validates and applies one Task status change, persisting and
// publishing it. It is the single place every status mutation flows
// through, so the allowed-transition table is never bypassed, and the
// single place allowed to PutTask a terminal record: once Immutable()
// is true, store.Store.PutTask refuses any further overwrite, so every
// field the terminal record needs (CompletedAt, Progress) has to be set
// here, in the same write as the status change.
func (f *Facade) transition(ctx context.Context, task *docmodel.Task, to docmodel.Status) error {
	if !docmodel.CanTransition(task.Status, to) {
		return fmt.Errorf("task %s: cannot transition %s -> %s", task.ID, task.Status, to)
	}
	from := task.Status
	task.Status = to
	if to == docmodel.StatusProcessing && task.StartedAt == nil {
		now := time.Now().UTC()
		task.StartedAt = &now
	}
	if task.Immutable() {
		now := time.Now().UTC()
		task.CompletedAt = &now
		task.Progress = 1.0
	}
	if err := f.Store.PutTask(ctx, *task); err != nil {
		return fmt.Errorf("persisting task %s status %s: %w", task.ID, to, err)
	}
	if f.Metrics != nil {
		f.Metrics.ObserveStatus(to)
	}
	f.publish(task.ID, docmodel.EventTaskStateChanged, docmodel.StateChangePayload{From: from, To: to})
	return nil
}

// fail moves task to Failed, recording reason as its LastError.
func (f *Facade) fail(ctx context.Context, task *docmodel.Task, kind docmodel.ErrorKind, reason string) error {
	taskErr := docmodel.AttemptError{
		TaskID:  task.ID,
		Kind:    kind,
		Message: reason,
		At:      time.Now().UTC(),
	}
	if err := f.Store.AppendError(ctx, taskErr); err != nil {
		logger.Error("persisting task failure error", "task_id", task.ID, "error", err)
	}
	task.LastError = &taskErr
	if err := f.transition(ctx, task, docmodel.StatusFailed); err != nil {
		return err
	}
	return fmt.Errorf("task %s failed: %s", task.ID, reason)
}

// toManualReview moves task to ManualReview, recording the attempt that
// triggered it as the best attempt on record so far.
func (f *Facade) toManualReview(ctx context.Context, task *docmodel.Task, attempt docmodel.Attempt) error {
	task.BestAttemptID = attempt.ID
	return f.transition(ctx, task, docmodel.StatusManualReview)
}

// complete moves task to Completed, chunks the merged OCR text through
// RelationalChunker, and pushes the result to the external index sink.
func (f *Facade) complete(ctx context.Context, task *docmodel.Task, attempt docmodel.Attempt, result docmodel.OCRResult) error {
	task.BestAttemptID = attempt.ID

	if f.Chunker != nil {
		chunks, err := f.Chunker.Chunk(ctx, task.ID, result.Text)
		if err != nil {
			logger.Error("chunking completed document", "task_id", task.ID, "error", err)
		} else if f.Index != nil && len(chunks) > 0 {
			if err := f.Index.Index(ctx, chunks); err != nil {
				logger.Error("indexing completed document", "task_id", task.ID, "error", err)
			}
		}
	}

	return f.transition(ctx, task, docmodel.StatusCompleted)
}

// storeCheckpointer narrows Store down to chunkedproc's Checkpointer.
func (f *Facade) storeCheckpointer() chunkedproc.Checkpointer {
	return f.Store
}

// errorRecorder narrows Store down to retry's ErrorRecorder.
func (f *Facade) errorRecorder() retry.ErrorRecorder {
	return f.Store
}

// poolSize resolves the configured chunk-level concurrency, defaulting to
// chunkedproc's own default when unset.
func (f *Facade) poolSize() int {
	return f.ChunkPoolSize
}
