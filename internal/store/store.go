// Package store implements the durable, process-crash-safe TaskStore.
// Every write goes straight to MongoDB before the call returns, so a
// successful Put of a terminal-status task guarantees that a subsequent
// Get, even after a crash, returns the same terminal record.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// Store is the TaskStore. A single Store is shared by the queue,
// the orchestrator and the CLI; all methods are safe for concurrent use.
type Store struct {
	db *mongo.Database

	tasks       *mongo.Collection
	attempts    *mongo.Collection
	checkpoints *mongo.Collection
	taskErrors  *mongo.Collection
	samples     *mongo.Collection
	validations *mongo.Collection

	initOnce sync.Once
	initErr  error
}

// Connect dials MongoDB and returns a Store with its indexes ensured:
// indexes are created here, at connect time, rather than via an external
// migration step.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		db:          db,
		tasks:       db.Collection("tasks"),
		attempts:    db.Collection("attempts"),
		checkpoints: db.Collection("checkpoints"),
		taskErrors:  db.Collection("task_errors"),
		samples:     db.Collection("samples"),
		validations: db.Collection("validations"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}, {Key: "added_at", Value: 1}}},
		{Keys: bson.D{{Key: "added_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("creating task indexes: %w", err)
	}
	if _, err := s.attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "index", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("creating attempt indexes: %w", err)
	}
	if _, err := s.checkpoints.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("creating checkpoint indexes: %w", err)
	}
	if _, err := s.taskErrors.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("creating task_errors indexes: %w", err)
	}
	if _, err := s.samples.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "processed_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("creating sample indexes: %w", err)
	}
	return nil
}

// PutTask is an idempotent, atomic upsert by id. It refuses a
// transition the state machine disallows, unless the target record does
// not exist yet (first insert).
func (s *Store) PutTask(ctx context.Context, task docmodel.Task) error {
	existing, err := s.GetTask(ctx, task.ID)
	if err == nil {
		if existing.Immutable() {
			return fmt.Errorf("task %s is terminal (%s), refusing overwrite", task.ID, existing.Status)
		}
		if existing.Status != task.Status && !docmodel.CanTransition(existing.Status, task.Status) {
			return fmt.Errorf("task %s: illegal transition %s -> %s", task.ID, existing.Status, task.Status)
		}
	} else if !isNotFound(err) {
		return err
	}

	if task.SchemaVersion == 0 {
		task.SchemaVersion = docmodel.CurrentSchemaVersion
	}

	opts := options.Replace().SetUpsert(true)
	_, err = s.tasks.ReplaceOne(ctx, bson.M{"_id": task.ID}, task, opts)
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns docmodel.ErrNotFound when no record matches.
func (s *Store) GetTask(ctx context.Context, id string) (docmodel.Task, error) {
	var task docmodel.Task
	err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return docmodel.Task{}, docmodel.ErrNotFound
	}
	if err != nil {
		return docmodel.Task{}, fmt.Errorf("loading task %s: %w", id, err)
	}
	return task, nil
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status    docmodel.Status
	Priority  *docmodel.Priority
	AddedFrom *time.Time
	AddedTo   *time.Time
	Limit     int64
}

// ListTasks returns tasks matching filter, oldest first within priority.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]docmodel.Task, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != nil {
		query["priority"] = *filter.Priority
	}
	if filter.AddedFrom != nil || filter.AddedTo != nil {
		rng := bson.M{}
		if filter.AddedFrom != nil {
			rng["$gte"] = *filter.AddedFrom
		}
		if filter.AddedTo != nil {
			rng["$lte"] = *filter.AddedTo
		}
		query["added_at"] = rng
	}

	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "added_at", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := s.tasks.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []docmodel.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	return tasks, nil
}

// PutAttempt upserts an Attempt record.
func (s *Store) PutAttempt(ctx context.Context, attempt docmodel.Attempt) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.attempts.ReplaceOne(ctx, bson.M{"_id": attempt.ID}, attempt, opts)
	if err != nil {
		return fmt.Errorf("upserting attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// GetAttempt loads a single Attempt by id.
func (s *Store) GetAttempt(ctx context.Context, id string) (docmodel.Attempt, error) {
	var attempt docmodel.Attempt
	err := s.attempts.FindOne(ctx, bson.M{"_id": id}).Decode(&attempt)
	if err == mongo.ErrNoDocuments {
		return docmodel.Attempt{}, docmodel.ErrNotFound
	}
	if err != nil {
		return docmodel.Attempt{}, fmt.Errorf("loading attempt %s: %w", id, err)
	}
	return attempt, nil
}

// ListAttempts returns every attempt recorded for a task, in attempt order.
func (s *Store) ListAttempts(ctx context.Context, taskID string) ([]docmodel.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "index", Value: 1}})
	cursor, err := s.attempts.Find(ctx, bson.M{"task_id": taskID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing attempts for %s: %w", taskID, err)
	}
	defer cursor.Close(ctx)

	var attempts []docmodel.Attempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, fmt.Errorf("decoding attempts for %s: %w", taskID, err)
	}
	return attempts, nil
}

// AppendError persists one AttemptError before a retry decision is made.
func (s *Store) AppendError(ctx context.Context, taskErr docmodel.AttemptError) error {
	if taskErr.At.IsZero() {
		taskErr.At = time.Now().UTC()
	}
	if _, err := s.taskErrors.InsertOne(ctx, taskErr); err != nil {
		return fmt.Errorf("appending task error: %w", err)
	}
	return nil
}

// ListErrors returns every recorded AttemptError for a task, oldest first.
func (s *Store) ListErrors(ctx context.Context, taskID string) ([]docmodel.AttemptError, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cursor, err := s.taskErrors.Find(ctx, bson.M{"task_id": taskID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing errors for %s: %w", taskID, err)
	}
	defer cursor.Close(ctx)

	var errs []docmodel.AttemptError
	if err := cursor.All(ctx, &errs); err != nil {
		return nil, fmt.Errorf("decoding errors for %s: %w", taskID, err)
	}
	return errs, nil
}

// PutCheckpoint writes the latest checkpoint for an attempt. Older
// checkpoints for the same attempt are compacted immediately rather than
// accumulating, since only the latest is ever read back.
func (s *Store) PutCheckpoint(ctx context.Context, cp docmodel.Checkpoint) error {
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	if _, err := s.checkpoints.DeleteMany(ctx, bson.M{"attempt_id": cp.AttemptID}); err != nil {
		return fmt.Errorf("compacting checkpoints for attempt %s: %w", cp.AttemptID, err)
	}
	if _, err := s.checkpoints.InsertOne(ctx, cp); err != nil {
		return fmt.Errorf("writing checkpoint for attempt %s: %w", cp.AttemptID, err)
	}
	return nil
}

// LoadLatestCheckpoint returns the most recent checkpoint for a task, or
// docmodel.ErrNotFound if none exists.
func (s *Store) LoadLatestCheckpoint(ctx context.Context, taskID string) (docmodel.Checkpoint, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	var cp docmodel.Checkpoint
	err := s.checkpoints.FindOne(ctx, bson.M{"task_id": taskID}, opts).Decode(&cp)
	if err == mongo.ErrNoDocuments {
		return docmodel.Checkpoint{}, docmodel.ErrNotFound
	}
	if err != nil {
		return docmodel.Checkpoint{}, fmt.Errorf("loading checkpoint for %s: %w", taskID, err)
	}
	return cp, nil
}

// PutValidationReport stores a ValidationReport keyed by attempt id.
func (s *Store) PutValidationReport(ctx context.Context, report docmodel.ValidationReport) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.validations.ReplaceOne(ctx, bson.M{"_id": report.AttemptID}, report, opts)
	if err != nil {
		return fmt.Errorf("upserting validation report %s: %w", report.AttemptID, err)
	}
	return nil
}

// AppendSample records one SampleRecord drawn by a sampling audit run.
func (s *Store) AppendSample(ctx context.Context, sample docmodel.SampleRecord) error {
	if sample.ProcessedAt.IsZero() {
		sample.ProcessedAt = time.Now().UTC()
	}
	if _, err := s.samples.InsertOne(ctx, sample); err != nil {
		return fmt.Errorf("appending sample: %w", err)
	}
	return nil
}

// RecentSamples returns up to limit SampleRecords, newest first, used as
// the population a sampling strategy draws from.
func (s *Store) RecentSamples(ctx context.Context, limit int64) ([]docmodel.SampleRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "processed_at", Value: -1}}).SetLimit(limit)
	cursor, err := s.samples.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing recent samples: %w", err)
	}
	defer cursor.Close(ctx)

	var samples []docmodel.SampleRecord
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, fmt.Errorf("decoding recent samples: %w", err)
	}
	return samples, nil
}

// DeleteTask cascade-deletes a task and every associated record.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.tasks.DeleteOne(ctx, bson.M{"_id": taskID}); err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	if _, err := s.attempts.DeleteMany(ctx, bson.M{"task_id": taskID}); err != nil {
		return fmt.Errorf("deleting attempts for %s: %w", taskID, err)
	}
	if _, err := s.checkpoints.DeleteMany(ctx, bson.M{"task_id": taskID}); err != nil {
		return fmt.Errorf("deleting checkpoints for %s: %w", taskID, err)
	}
	if _, err := s.taskErrors.DeleteMany(ctx, bson.M{"task_id": taskID}); err != nil {
		return fmt.Errorf("deleting errors for %s: %w", taskID, err)
	}
	if _, err := s.validations.DeleteMany(ctx, bson.M{"task_id": taskID}); err != nil {
		return fmt.Errorf("deleting validation reports for %s: %w", taskID, err)
	}
	return nil
}

// SweepCompleted deletes terminal tasks (and their cascade) older than
// retention, the periodic GC described in the expanded spec's retention
// policy. Returns the count of tasks removed.
func (s *Store) SweepCompleted(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	cursor, err := s.tasks.Find(ctx, bson.M{
		"status":       bson.M{"$in": []docmodel.Status{docmodel.StatusCompleted, docmodel.StatusFailed, docmodel.StatusCancelled, docmodel.StatusManualReview}},
		"completed_at": bson.M{"$gt": time.Time{}, "$lte": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("scanning for gc sweep: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var task docmodel.Task
		if err := cursor.Decode(&task); err != nil {
			continue
		}
		ids = append(ids, task.ID)
	}

	for _, id := range ids {
		if err := s.DeleteTask(ctx, id); err != nil {
			return 0, fmt.Errorf("gc deleting task %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func isNotFound(err error) bool {
	apiErr, ok := err.(*docmodel.APIError)
	return ok && apiErr.Code == docmodel.CodeNotFound
}
