// Package notify implements NotificationHub: a typed publish/
// subscribe layer over docmodel.Event with one buffered channel per
// subscriber and a per-task serializing goroutine so a given Task's events
// are always delivered in order, even when multiple components publish for
// it concurrently. Delivery is best-effort: the Hub does not retain events
// for a subscriber that joins late, and a slow subscriber drops events
// rather than stall the publisher.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/logger"
)

const defaultTaskQueueSize = 64

// Hub fans out Events to subscribers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[uint64]chan docmodel.Event
	nextSubID uint64

	queueMu sync.Mutex
	queues  map[string]chan docmodel.Event
	stop    chan struct{}
	once    sync.Once
}

// New builds an empty Hub.
func New() *Hub {
	return &Hub{
		subs:   make(map[uint64]chan docmodel.Event),
		queues: make(map[string]chan docmodel.Event),
		stop:   make(chan struct{}),
	}
}

// Subscribe registers a new subscriber with the given channel buffer size
// and returns its delivery channel and an unsubscribe function.
func (h *Hub) Subscribe(bufferSize int) (<-chan docmodel.Event, func()) {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	ch := make(chan docmodel.Event, bufferSize)
	id := atomic.AddUint64(&h.nextSubID, 1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish enqueues event onto its Task's serial queue, starting that
// queue's drain goroutine on first use.
func (h *Hub) Publish(event docmodel.Event) {
	q := h.taskQueue(event.TaskID)
	select {
	case q <- event:
	default:
		logger.Warn("notification queue full, dropping event", "task_id", event.TaskID, "kind", event.Kind)
	}
}

// Close stops every per-task drain goroutine and closes all subscriber
// channels.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.stop)
		h.mu.Lock()
		for id, ch := range h.subs {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	})
}

func (h *Hub) taskQueue(taskID string) chan docmodel.Event {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()

	if q, ok := h.queues[taskID]; ok {
		return q
	}
	q := make(chan docmodel.Event, defaultTaskQueueSize)
	h.queues[taskID] = q
	go h.drain(taskID, q)
	return q
}

// drain is the per-task serializing goroutine: it is the only reader of q,
// so events for this task are always fanned out in the order Publish
// enqueued them.
func (h *Hub) drain(taskID string, q chan docmodel.Event) {
	for {
		select {
		case event := <-q:
			h.fanOut(event)
		case <-h.stop:
			return
		}
	}
}

// fanOut delivers event to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking the whole Hub.
func (h *Hub) fanOut(event docmodel.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			logger.Warn("subscriber channel full, dropping event", "subscriber_id", id, "task_id", event.TaskID)
		}
	}
}
