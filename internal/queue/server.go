package queue

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/aurelienbran/docproc/internal/config"
)

// NewServer builds the asynq.Server a worker process runs, using the
// strict-priority queue weights so a higher-priority queue always drains
// before a lower one gets a worker slot, mirroring the teacher's own
// asynq.Config wiring in cmd/worker/worker.go.
func NewServer(cfg *config.Config) *asynq.Server {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	concurrency := 0
	for _, w := range cfg.QueueConcurrency {
		concurrency += w
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         QueueWeights(cfg.QueueConcurrency),
		StrictPriority: true,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("task %s failed: %v", task.Type(), err)
		}),
	})
}
