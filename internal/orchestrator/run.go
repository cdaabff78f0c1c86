package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aurelienbran/docproc/internal/chunkedproc"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/logger"
	"github.com/aurelienbran/docproc/internal/ocrengine"
	"github.com/aurelienbran/docproc/internal/retry"
	"github.com/aurelienbran/docproc/internal/selector"
)

// Run is the asynq handler's entry point: it drives one Task from
// Preprocessing through to a terminal status (Completed, Failed or
// ManualReview), looping internally over reprocessing attempts per the
// strategy-adaptation rules before ever returning to the queue.
func (f *Facade) Run(ctx context.Context, taskID string) error {
	ctx, span := f.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(attribute.String("task_id", taskID)))
	defer span.End()

	task, err := f.Store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("loading task %s: %w", taskID, err)
	}

	if err := f.transition(ctx, &task, docmodel.StatusPreprocessing); err != nil {
		return err
	}

	metricsDoc, err := ocrengine.ExtractMetrics(task.InputPath, detectMIMEType(task.InputPath))
	if err != nil {
		return f.fail(ctx, &task, docmodel.ErrorSystem, fmt.Sprintf("extracting document metrics: %v", err))
	}

	if err := f.transition(ctx, &task, docmodel.StatusProcessing); err != nil {
		return err
	}

	var (
		attempt  docmodel.Attempt
		report   docmodel.ValidationReport
		merged   docmodel.OCRResult
		attempts []docmodel.Attempt
	)

	maxReprocess := f.MaxReprocessAttempts
	if maxReprocess <= 0 {
		maxReprocess = 3
	}

	var lastReport *docmodel.ValidationReport
	for {
		// a Pause or Cancel stored while the previous attempt ran ends the run
		if current, err := f.Store.GetTask(ctx, task.ID); err == nil && current.Status != task.Status {
			return nil
		}
		var (
			roundAttempts []docmodel.Attempt
			attemptErr    error
		)
		roundAttempts, merged, attemptErr = f.runAttempt(ctx, &task, metricsDoc, attempts, lastReport)
		if len(roundAttempts) == 0 {
			// failed before any round completed: no engine registered, or
			// the document could not be split into chunks.
			return f.fail(ctx, &task, docmodel.ErrorOCR, attemptErr.Error())
		}
		attempts = append(attempts, roundAttempts...)
		attempt = roundAttempts[len(roundAttempts)-1]
		for _, a := range roundAttempts {
			task.Attempts = append(task.Attempts, a.ID)
		}

		if attemptErr != nil && merged.PagesProcessed == 0 {
			return f.fail(ctx, &task, docmodel.ErrorOCR, attemptErr.Error())
		}

		report = f.Detector.Detect(task.ID, attempt.ID, attempt)
		if err := f.Store.PutValidationReport(ctx, report); err != nil {
			logger.Error("persisting validation report", "task_id", task.ID, "attempt_id", attempt.ID, "error", err)
		}
		lastReport = &report

		if !report.RequiresReprocessing || len(attempts) >= maxReprocess {
			break
		}
	}

	if report.RequiresManualReview {
		return f.toManualReview(ctx, &task, attempt)
	}

	return f.complete(ctx, &task, attempt, merged)
}

// runAttempt runs one full OCR+chunk pass: selects an engine, splits the
// source, runs ChunkedProcessor under RetrySupervisor, and records one
// docmodel.Attempt per supervised retry round (a Timeout-then-success pass
// yields two Attempts, the first non-terminal, the second Success/Terminal).
// prior holds every attempt already made this run, so the Reprocessor can
// preserve a specialized engine or advance the fallback chain on a retry.
func (f *Facade) runAttempt(ctx context.Context, task *docmodel.Task, metricsDoc docmodel.DocumentMetrics, prior []docmodel.Attempt, lastReport *docmodel.ValidationReport) ([]docmodel.Attempt, docmodel.OCRResult, error) {
	attemptIndex := len(prior)
	engineName := f.pickEngine(task, metricsDoc, prior, lastReport)
	engine, ok := f.Engines[engineName]
	if !ok {
		return nil, docmodel.OCRResult{}, fmt.Errorf("no engine registered for %q", engineName)
	}

	attemptID := fmt.Sprintf("%s-attempt-%d", task.ID, attemptIndex)
	processor := &chunkedproc.Processor{
		Engine:   engine,
		Store:    f.storeCheckpointer(),
		PoolSize: f.poolSize(),
	}

	chunks, err := processor.Split(task.InputPath)
	if err != nil {
		return nil, docmodel.OCRResult{}, fmt.Errorf("splitting document: %w", err)
	}

	var (
		result        docmodel.OCRResult
		roundAttempts []docmodel.Attempt
		roundStarted  = time.Now().UTC()
	)
	supervisor := &retry.Supervisor{
		Store:       f.errorRecorder(),
		MaxAttempts: f.MaxRetryAttempts,
		BaseDelay:   f.RetryBaseDelay,
		MaxDelay:    f.RetryMaxDelay,
		OnRound: func(round int, roundErr error) {
			completed := time.Now().UTC()
			a := docmodel.Attempt{
				ID:             fmt.Sprintf("%s-round-%d", attemptID, round),
				TaskID:         task.ID,
				Index:          attemptIndex,
				EngineChain:    []string{engineName},
				Success:        roundErr == nil,
				Confidence:     result.Confidence,
				PagesProcessed: result.PagesProcessed,
				ProcessingTime: completed.Sub(roundStarted),
				StartedAt:      roundStarted,
				CompletedAt:    &completed,
				Terminal:       roundErr == nil,
			}
			roundStarted = completed
			if err := f.Store.PutAttempt(ctx, a); err != nil {
				logger.Error("persisting attempt", "task_id", task.ID, "attempt_id", a.ID, "error", err)
			}
			if f.Metrics != nil {
				f.Metrics.ObserveAttemptDuration(a.ProcessingTime)
			}
			roundAttempts = append(roundAttempts, a)
		},
	}

	runErr := supervisor.Run(ctx, task.ID, attemptID, func(ctx context.Context) error {
		r, procErr := processor.Process(ctx, task.ID, attemptID, chunks, docmodel.OCRRequest{
			TaskID:        task.ID,
			Engine:        engineName,
			Language:      task.Options.Language,
			ExtractTables: task.Options.ExtractTables,
			ExtractImages: task.Options.ExtractImages,
		})
		result = r
		return procErr
	})

	return roundAttempts, result, runErr
}

// pickEngine runs OCRSelector on the first attempt, or consults the
// Reprocessor's strategy-adaptation plan on a retry, preserving whatever
// specialized engine handles the previous attempt's critical content types.
func (f *Facade) pickEngine(task *docmodel.Task, metricsDoc docmodel.DocumentMetrics, prior []docmodel.Attempt, lastReport *docmodel.ValidationReport) string {
	if len(prior) == 0 {
		if task.Options.OCREngine != "" && task.Options.OCREngine != "auto" {
			return task.Options.OCREngine
		}
		prefs := selector.Select(metricsDoc, f.engineNames(), task.Options.PreferredStrategy, f.SelectorThresholds)
		if len(prefs) > 0 {
			return prefs[0].Engine
		}
		return "genai"
	}

	if f.Reprocessor != nil {
		plan, ok := f.Reprocessor.Plan(prior, criticalContentTypes(lastReport))
		if ok {
			return plan.Engine
		}
	}
	chain := prior[len(prior)-1].EngineChain
	return chain[len(chain)-1]
}

// criticalContentTypes collects the content types a validation report
// flagged critical, so Reprocessor.Plan can preserve a specialized engine
// for them across a retry.
func criticalContentTypes(report *docmodel.ValidationReport) []string {
	if report == nil {
		return nil
	}
	var types []string
	seen := make(map[string]bool)
	for _, issue := range report.Issues {
		if issue.Kind != docmodel.IssueCritical || seen[issue.ContentType] {
			continue
		}
		seen[issue.ContentType] = true
		types = append(types, issue.ContentType)
	}
	return types
}

func (f *Facade) engineNames() []string {
	names := make([]string, 0, len(f.Engines))
	for name := range f.Engines {
		names = append(names, name)
	}
	return names
}
