package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

type fakeRecorder struct {
	mu     sync.Mutex
	errors []docmodel.AttemptError
}

func (f *fakeRecorder) AppendError(ctx context.Context, taskErr docmodel.AttemptError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, taskErr)
	return nil
}

type classifiedErr struct {
	msg       string
	kind      docmodel.ErrorKind
	transient bool
}

func (e *classifiedErr) Error() string            { return e.msg }
func (e *classifiedErr) Kind() docmodel.ErrorKind { return e.kind }
func (e *classifiedErr) Transient() bool          { return e.transient }

func TestClassifyFallsBackToUnknown(t *testing.T) {
	if got := Classify(errors.New("boom")); got != docmodel.ErrorUnknown {
		t.Fatalf("Classify() = %v, want unknown", got)
	}
}

func TestClassifyUsesClassifiable(t *testing.T) {
	err := &classifiedErr{msg: "bad format", kind: docmodel.ErrorValidation}
	if got := Classify(err); got != docmodel.ErrorValidation {
		t.Fatalf("Classify() = %v, want validation", got)
	}
}

func TestRunSucceedsWithoutRetry(t *testing.T) {
	rec := &fakeRecorder{}
	sup := &Supervisor{Store: rec, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := sup.Run(context.Background(), "task-1", "attempt-1", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
	if len(rec.errors) != 0 {
		t.Fatalf("expected no recorded errors, got %d", len(rec.errors))
	}
}

func TestRunRetriesRecoverableError(t *testing.T) {
	rec := &fakeRecorder{}
	sup := &Supervisor{Store: rec, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := sup.Run(context.Background(), "task-1", "attempt-1", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &classifiedErr{msg: "flaky", kind: docmodel.ErrorNetwork, transient: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error after eventual success: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(rec.errors) != 2 {
		t.Fatalf("expected 2 recorded errors before success, got %d", len(rec.errors))
	}
}

func TestRunDoesNotRetryValidationError(t *testing.T) {
	rec := &fakeRecorder{}
	sup := &Supervisor{Store: rec, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := sup.Run(context.Background(), "task-1", "attempt-1", func(ctx context.Context) error {
		calls++
		return &classifiedErr{msg: "bad input", kind: docmodel.ErrorValidation}
	})
	if err == nil {
		t.Fatalf("expected error to surface")
	}
	if calls != 1 {
		t.Fatalf("expected validation error to stop after 1 call, got %d calls", calls)
	}
	if len(rec.errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(rec.errors))
	}
	if rec.errors[0].Retryable {
		t.Fatalf("expected recorded error to be marked non-retryable")
	}
}

func TestRunExhaustsMaxAttempts(t *testing.T) {
	rec := &fakeRecorder{}
	sup := &Supervisor{Store: rec, MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := sup.Run(context.Background(), "task-1", "attempt-1", func(ctx context.Context) error {
		calls++
		return &classifiedErr{msg: fmt.Sprintf("fail %d", calls), kind: docmodel.ErrorTimeout, transient: true}
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
