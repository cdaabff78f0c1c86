// Package queue implements PriorityQueue on top of asynq: five
// strictly-ordered priority queues, bounded worker concurrency, and an
// in-memory pause set layered on asynq's own queue/cancellation primitives.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// TaskTypeProcess is the single asynq task type every submission uses; the
// payload carries only the docproc Task ID, the full record lives in the
// TaskStore so the handler always re-reads current state before acting.
const TaskTypeProcess = "docproc:process"

// queueNames maps a docmodel.Priority to its asynq queue name, in the
// strict-priority order ("strictly higher priority is
// picked before any task with lower priority").
var queueNames = map[docmodel.Priority]string{
	docmodel.PriorityCritical:   "critical",
	docmodel.PriorityHigh:       "high",
	docmodel.PriorityNormal:     "normal",
	docmodel.PriorityLow:        "low",
	docmodel.PriorityBackground: "background",
}

// QueueWeights converts the configured per-priority concurrency shares into
// the weight map asynq.Config.Queues expects, used together with
// StrictPriority so higher-priority queues always drain first.
func QueueWeights(concurrency map[string]int) map[string]int {
	weights := make(map[string]int, len(queueNames))
	for _, name := range queueNames {
		if w, ok := concurrency[name]; ok && w > 0 {
			weights[name] = w
		} else {
			weights[name] = 1
		}
	}
	return weights
}

// processPayload is the asynq task payload: just enough to look the task
// back up in the TaskStore.
type processPayload struct {
	TaskID string `json:"task_id"`
}

// Dispatcher is the enqueue/pause/resume/cancel façade the orchestrator
// and CLI drive; it owns no domain logic, only the asynq wiring plus the
// bookkeeping asynq itself has no concept of (pause).
type Dispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector

	pauseMu sync.Mutex
	paused  map[string]bool
}

// NewDispatcher builds a Dispatcher against the given Redis connection.
func NewDispatcher(redisOpt asynq.RedisClientOpt) *Dispatcher {
	return &Dispatcher{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		paused:    make(map[string]bool),
	}
}

// Close releases the underlying asynq client/inspector connections.
func (d *Dispatcher) Close() error {
	if err := d.client.Close(); err != nil {
		return err
	}
	return d.inspector.Close()
}

// Enqueue admits a Task into its priority queue. FIFO ordering within a
// priority class falls out of asynq's own queue semantics — same queue,
// same weight, earliest enqueued is delivered first.
func (d *Dispatcher) Enqueue(task docmodel.Task, maxRetry int, timeout time.Duration) error {
	queueName, ok := queueNames[task.Priority]
	if !ok {
		return fmt.Errorf("unknown priority %v", task.Priority)
	}

	payload, err := json.Marshal(processPayload{TaskID: task.ID})
	if err != nil {
		return fmt.Errorf("marshaling task payload: %w", err)
	}

	asynqTask := asynq.NewTask(TaskTypeProcess, payload,
		asynq.TaskID(task.ID),
		asynq.Queue(queueName),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
	)

	if _, err := d.client.Enqueue(asynqTask); err != nil {
		return fmt.Errorf("enqueueing task %s: %w", task.ID, err)
	}
	return nil
}

// Pause marks a Task so its handler skips processing on the next delivery,
// and removes it from its asynq queue if it has not yet been picked up —
// "a Paused task is skipped but retains its position" is approximated
// here by re-admitting at the tail of Queued on Resume.
func (d *Dispatcher) Pause(task docmodel.Task) error {
	d.pauseMu.Lock()
	d.paused[task.ID] = true
	d.pauseMu.Unlock()

	queueName := queueNames[task.Priority]
	if err := d.inspector.DeleteTask(queueName, task.ID); err != nil && err != asynq.ErrTaskNotFound {
		return fmt.Errorf("removing paused task %s from queue: %w", task.ID, err)
	}
	return nil
}

// Resume clears the pause flag and re-admits the Task into Queued.
func (d *Dispatcher) Resume(task docmodel.Task, maxRetry int, timeout time.Duration) error {
	d.pauseMu.Lock()
	delete(d.paused, task.ID)
	d.pauseMu.Unlock()

	return d.Enqueue(task, maxRetry, timeout)
}

// IsPaused reports whether task.ID was last paused without a matching resume.
func (d *Dispatcher) IsPaused(taskID string) bool {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()
	return d.paused[taskID]
}

// Cancel implements two-tier cancellation: a Queued/Paused task is
// removed from its asynq queue immediately; a Processing task is signalled
// through asynq's own cancellation channel, which cancels the context the
// handler runs under; ChunkedProcessor does not check it between chunks, it
// reaches the OCR engine calls through that context.
func (d *Dispatcher) Cancel(task docmodel.Task) error {
	queueName := queueNames[task.Priority]
	switch task.Status {
	case docmodel.StatusQueued, docmodel.StatusPaused:
		if err := d.inspector.DeleteTask(queueName, task.ID); err != nil && err != asynq.ErrTaskNotFound {
			return fmt.Errorf("cancelling queued task %s: %w", task.ID, err)
		}
	case docmodel.StatusProcessing, docmodel.StatusPreprocessing, docmodel.StatusWaitingForPool:
		d.inspector.CancelProcessing(task.ID)
	}
	return nil
}

// Stats reports a point-in-time snapshot of one queue, the raw material
// for internal/metrics' queue-depth gauges.
type Stats struct {
	Priority docmodel.Priority
	Queued   int
	Active   int
}

// QueueStats returns the current depth of every priority queue.
func (d *Dispatcher) QueueStats() ([]Stats, error) {
	var out []Stats
	for priority, name := range queueNames {
		info, err := d.inspector.GetQueueInfo(name)
		if err != nil {
			return nil, fmt.Errorf("inspecting queue %s: %w", name, err)
		}
		out = append(out, Stats{Priority: priority, Queued: info.Pending, Active: info.Active})
	}
	return out, nil
}

// Handler adapts a domain process function to asynq's ServeMux contract.
// process receives the docproc Task ID and the (possibly cancelled) ctx.
type Handler struct {
	Process func(ctx context.Context, taskID string) error
	Dispatcher *Dispatcher
}

// ServeMux builds the asynq.ServeMux the worker process runs.
func (h *Handler) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeProcess, h.handle)
	return mux
}

func (h *Handler) handle(ctx context.Context, t *asynq.Task) error {
	var payload processPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal task payload: %w", asynq.SkipRetry)
	}

	if h.Dispatcher.IsPaused(payload.TaskID) {
		return nil // pretend handled; Resume will re-enqueue it
	}

	return h.Process(ctx, payload.TaskID)
}
