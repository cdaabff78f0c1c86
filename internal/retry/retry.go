// Package retry implements RetrySupervisor: classifies attempt
// failures into a closed set of error kinds, retries the recoverable ones
// with an exponential backoff capped at ~30s, and persists every error
// before making the retry decision.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	retrygo "github.com/avast/retry-go/v4"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// ErrorRecorder is the narrow store dependency: every error is appended
// before the retry decision is made.
type ErrorRecorder interface {
	AppendError(ctx context.Context, taskErr docmodel.AttemptError) error
}

// Classifiable lets an attempt's error opt into an explicit ErrorKind and
// transience flag; an error that doesn't implement this is classified by
// Classify as ErrorTimeout when it wraps context.DeadlineExceeded and as
// ErrorUnknown otherwise (both recoverable).
type Classifiable interface {
	error
	Kind() docmodel.ErrorKind
	Transient() bool
}

// Classify maps err to its docmodel.ErrorKind, consulting Classifiable
// when the attempt function provides it.
func Classify(err error) docmodel.ErrorKind {
	if err == nil {
		return ""
	}
	var classifiable Classifiable
	if errors.As(err, &classifiable) {
		return classifiable.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return docmodel.ErrorTimeout
	case errors.Is(err, context.Canceled):
		return docmodel.ErrorUnknown
	default:
		return docmodel.ErrorUnknown
	}
}

// recoverable applies the classification policy: Validation and non-transient System
// errors are not retried; everything else in the closed set is.
func recoverable(err error, kind docmodel.ErrorKind) bool {
	if kind == docmodel.ErrorValidation {
		return false
	}
	if kind == docmodel.ErrorSystem {
		var classifiable Classifiable
		if errors.As(err, &classifiable) {
			return classifiable.Transient()
		}
		return false // System errors default to non-transient when unclassified
	}
	return kind.Recoverable()
}

// Supervisor wraps attempt execution with the retry/backoff/checkpoint
// policy.
type Supervisor struct {
	Store       ErrorRecorder
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // default 1s
	MaxDelay    time.Duration // cap, default 30s

	// OnRound, if set, is called once per underlying retry round
	// (0-indexed) right after fn returns, so a caller can record one
	// docmodel.Attempt per round instead of one for the whole supervised
	// run.
	OnRound func(round int, err error)
}

// AttemptFunc is one execution pass; it returns an error classified via
// Classify (optionally implementing Classifiable for precise control).
type AttemptFunc func(ctx context.Context) error

// Run executes fn under the retry policy, appending every failure to the
// Task's error list before deciding whether to retry. It returns the last
// error encountered (nil on eventual success).
func (s *Supervisor) Run(ctx context.Context, taskID, attemptID string, fn AttemptFunc) error {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	maxDelay := s.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	baseDelay := s.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 1 * time.Second
	}

	round := 0
	return retrygo.Do(
		func() error {
			n := round
			round++

			err := fn(ctx)
			if err == nil {
				if s.OnRound != nil {
					s.OnRound(n, nil)
				}
				return nil
			}

			kind := Classify(err)
			taskErr := docmodel.AttemptError{
				TaskID:    taskID,
				AttemptID: attemptID,
				Kind:      kind,
				Message:   err.Error(),
				Retryable: recoverable(err, kind),
				At:        time.Now().UTC(),
			}
			if recordErr := s.Store.AppendError(ctx, taskErr); recordErr != nil {
				return fmt.Errorf("recording attempt error (original: %w): %v", err, recordErr)
			}

			if s.OnRound != nil {
				s.OnRound(n, err)
			}

			if !taskErr.Retryable {
				return retrygo.Unrecoverable(err)
			}
			return err
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(maxAttempts)),
		retrygo.DelayType(func(n uint, err error, cfg *retrygo.Config) time.Duration {
			delay := baseDelay * (1 << n)
			if delay > maxDelay {
				delay = maxDelay
			}
			return delay
		}),
		retrygo.LastErrorOnly(true),
	)
}
