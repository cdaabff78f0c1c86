package notify

import (
	"testing"
	"time"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := New()
	defer h.Close()

	ch, unsubscribe := h.Subscribe(4)
	defer unsubscribe()

	h.Publish(docmodel.Event{TaskID: "task-1", Kind: docmodel.EventTaskCreated})

	select {
	case event := <-ch:
		if event.TaskID != "task-1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishPreservesPerTaskOrder(t *testing.T) {
	h := New()
	defer h.Close()

	ch, unsubscribe := h.Subscribe(16)
	defer unsubscribe()

	h.Publish(docmodel.Event{TaskID: "task-1", Kind: docmodel.EventTaskCreated})
	h.Publish(docmodel.Event{TaskID: "task-1", Kind: docmodel.EventTaskProgress})
	h.Publish(docmodel.Event{TaskID: "task-1", Kind: docmodel.EventTaskStateChanged})

	var got []docmodel.EventKind
	for i := 0; i < 3; i++ {
		select {
		case event := <-ch:
			got = append(got, event.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	want := []docmodel.EventKind{docmodel.EventTaskCreated, docmodel.EventTaskProgress, docmodel.EventTaskStateChanged}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected in-order delivery, got %v want %v", got, want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New()
	defer h.Close()

	ch, unsubscribe := h.Subscribe(4)
	unsubscribe()

	h.Publish(docmodel.Event{TaskID: "task-1", Kind: docmodel.EventTaskCreated})

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel closed after unsubscribe, got an event")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected channel to be closed immediately after unsubscribe")
	}
}

func TestLateSubscriberDoesNotReceivePastEvents(t *testing.T) {
	h := New()
	defer h.Close()

	h.Publish(docmodel.Event{TaskID: "task-1", Kind: docmodel.EventTaskCreated})
	time.Sleep(50 * time.Millisecond)

	ch, unsubscribe := h.Subscribe(4)
	defer unsubscribe()

	select {
	case event := <-ch:
		t.Fatalf("expected no retained events for a late subscriber, got %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}
