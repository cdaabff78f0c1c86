package main

import (
	"context"
	"log"

	"github.com/aurelienbran/docproc/internal/bootstrap"
	"github.com/aurelienbran/docproc/internal/logger"
	"github.com/aurelienbran/docproc/internal/queue"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.Build(ctx, "docproc-worker")
	if err != nil {
		log.Fatalf("bootstrapping worker: %v", err)
	}
	defer app.Close()

	handler := &queue.Handler{
		Process:    app.Facade.Run,
		Dispatcher: app.Queue,
	}

	server := queue.NewServer(app.Config)
	logger.Info("starting docproc worker", "redis", app.Config.RedisURL)
	if err := server.Run(handler.ServeMux()); err != nil {
		log.Fatalf("worker exited: %v", err)
	}
}
