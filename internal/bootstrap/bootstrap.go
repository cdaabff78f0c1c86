// Package bootstrap wires every component into one orchestrator.Facade,
// the way the teacher's cmd/main.go wires its Mongo/Redis/Gemini clients
// before handing them to routes and the asynq worker. cmd/worker and
// cmd/orchestrator both call Build so the wiring only happens once.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aurelienbran/docproc/internal/chunker"
	"github.com/aurelienbran/docproc/internal/config"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/logger"
	"github.com/aurelienbran/docproc/internal/metrics"
	"github.com/aurelienbran/docproc/internal/notify"
	"github.com/aurelienbran/docproc/internal/ocrengine"
	"github.com/aurelienbran/docproc/internal/orchestrator"
	"github.com/aurelienbran/docproc/internal/queue"
	"github.com/aurelienbran/docproc/internal/selector"
	"github.com/aurelienbran/docproc/internal/store"
	"github.com/aurelienbran/docproc/internal/telemetry"
	"github.com/aurelienbran/docproc/internal/validation"
)

// App holds every long-lived component plus their close funcs.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Queue   *queue.Dispatcher
	Hub     *notify.Hub
	Facade  *orchestrator.Facade
	Sampler *validation.Sampler
	Sched   *validation.Scheduler

	closers []func() error
}

// Close releases every resource Build opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Error("closing resource", "error", err)
		}
	}
}

// Build loads configuration and wires the task store, OCR engines,
// chunker, validation pipeline, queue dispatcher, notification hub
// and metrics into an orchestrator.Facade. serviceName identifies this
// process (worker, cli, ...) in traces.
func Build(ctx context.Context, serviceName string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg)

	app := &App{Config: cfg}

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.TraceEndpoint, cfg.TraceSampleRate)
	if err != nil {
		logger.Warn("tracing disabled: could not start tracer", "error", err)
	} else {
		app.closers = append(app.closers, func() error { shutdownTracer(); return nil })
	}

	st, err := store.Connect(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	app.Store = st

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	dispatcher := queue.NewDispatcher(redisOpt)
	app.Queue = dispatcher
	app.closers = append(app.closers, dispatcher.Close)

	hub := notify.New()
	app.Hub = hub
	app.closers = append(app.closers, func() error { hub.Close(); return nil })

	engines := map[string]docmodel.OCREngine{}
	genaiEngine, err := ocrengine.NewGenAIEngine(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout)
	if err != nil {
		return nil, fmt.Errorf("initializing genai engine: %w", err)
	}
	engines["genai"] = genaiEngine
	if cfg.OCRServiceEnabled {
		engines["legacy_http"] = ocrengine.NewLegacyEngine(cfg.OCRServiceURL, cfg.OCRTimeout)
	}

	var embedder docmodel.Embedder
	genaiEmbedder, err := ocrengine.NewGenAIEmbedder(ctx, cfg.GeminiAPIKey, "")
	if err != nil {
		logger.Warn("embeddings disabled: could not initialize embedder", "error", err)
	} else {
		embedder = genaiEmbedder
	}

	chunkerCfg := chunker.DefaultConfig()
	chunkerCfg.MaxChunkSize = cfg.DefaultChunkSize * 400 // pages-per-chunk to approximate chars
	if cfg.ChunkOverlap > 0 {
		chunkerCfg.Overlap = cfg.ChunkOverlap
	}
	if cfg.SemanticSimilarityThreshold > 0 {
		chunkerCfg.SimilarityThreshold = cfg.SemanticSimilarityThreshold
	}
	chunkerCfg.EmbeddingsEnabled = embedder != nil
	ch, err := chunker.New(embedder, chunkerCfg, 1024)
	if err != nil {
		return nil, fmt.Errorf("building chunker: %w", err)
	}

	thresholds, err := config.LoadThresholds(cfg.ThresholdTablePath)
	if err != nil {
		return nil, fmt.Errorf("loading threshold table: %w", err)
	}
	detector := &validation.Detector{Thresholds: thresholds}
	reprocessor := &validation.Reprocessor{
		MaxAttempts:         cfg.MaxReprocessAttempts,
		EngineFallbackChain: []string{"genai", "legacy_http"},
		SpecializedEngines:  map[string]string{"formula": "genai", "schema": "genai"},
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	facade := orchestrator.New(orchestrator.Facade{
		Store:                st,
		Queue:                dispatcher,
		Engines:              engines,
		Chunker:              ch,
		Detector:             detector,
		Reprocessor:          reprocessor,
		Hub:                  hub,
		Metrics:              reg,
		SelectorThresholds:   selector.DefaultThresholds(),
		ChunkPoolSize:        cfg.ChunkPoolSize,
		MaxRetryAttempts:     cfg.RetryMaxAttempts,
		RetryBaseDelay:       cfg.RetryBaseDelay,
		RetryMaxDelay:        cfg.RetryMaxDelay,
		AttemptTimeout:       cfg.OCRTimeout,
		MaxReprocessAttempts: cfg.MaxReprocessAttempts,
	})
	app.Facade = facade

	sampler := &validation.Sampler{
		Source:     st,
		Detector:   detector,
		SampleSize: cfg.SamplingSize,
		PoolSize:   cfg.SamplingSize * 4,
	}
	app.Sampler = sampler

	sched := validation.NewScheduler()
	if err := sched.ScheduleSampling(cfg.SamplingCron, sampler, validation.StrategyStratified); err != nil {
		logger.Warn("sampling scheduler not started", "error", err)
	} else {
		sched.Start()
		app.Sched = sched
		app.closers = append(app.closers, func() error { sched.Stop(); return nil })
	}

	startSweeper(st, cfg.GCSweepInterval, cfg.CompletedTaskRetention, app)

	return app, nil
}

// startSweeper periodically deletes completed/failed/cancelled/manual-review
// tasks past their retention window, on a goroutine stopped by App.Close.
func startSweeper(st *store.Store, interval, retention time.Duration, app *App) {
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	app.closers = append(app.closers, func() error { close(stop); return nil })

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := st.SweepCompleted(context.Background(), retention)
				if err != nil {
					logger.Error("sweeping completed tasks", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("swept completed tasks", "count", n)
				}
			}
		}
	}()
}
