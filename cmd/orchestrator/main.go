// Command orchestrator is the operator-facing CLI for the document
// pipeline: submit, inspect, pause/resume/cancel tasks, and read queue
// stats, the way the teacher's cmd/main.go exposes equivalent operations
// over HTTP but here as direct subcommands against the same Facade the
// worker runs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aurelienbran/docproc/internal/bootstrap"
	"github.com/aurelienbran/docproc/internal/docmodel"
	"github.com/aurelienbran/docproc/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Operate the document-processing pipeline",
	}

	root.AddCommand(
		enqueueCmd(),
		statusCmd(),
		listCmd(),
		pauseCmd(),
		resumeCmd(),
		cancelCmd(),
		statsCmd(),
	)

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func enqueueCmd() *cobra.Command {
	var (
		priority      string
		engine        string
		language      string
		strategy      string
		extractTables bool
		extractImages bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue [path]",
		Short: "Submit a document for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := bootstrap.Build(ctx, "docproc-cli")
			if err != nil {
				return err
			}
			defer app.Close()

			p, ok := docmodel.ParsePriority(priority)
			if !ok {
				return fmt.Errorf("invalid priority %q", priority)
			}
			opts := docmodel.DefaultTaskOptions()
			if engine != "" {
				opts.OCREngine = engine
			}
			if language != "" {
				opts.Language = language
			}
			if strategy != "" {
				opts.PreferredStrategy = strategy
			}
			opts.ExtractTables = extractTables
			opts.ExtractImages = extractImages

			task, err := app.Facade.Enqueue(ctx, args[0], opts, p)
			if err != nil {
				return err
			}
			color.Green("enqueued task %s (priority=%s)", task.ID, task.Priority)
			return nil
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "normal", "critical|high|normal|low|background")
	cmd.Flags().StringVar(&engine, "engine", "auto", "ocr engine override, or auto")
	cmd.Flags().StringVar(&language, "language", "", "document language hint")
	cmd.Flags().StringVar(&strategy, "strategy", "", "speed|accuracy")
	cmd.Flags().BoolVar(&extractTables, "extract-tables", false, "extract table structure")
	cmd.Flags().BoolVar(&extractImages, "extract-images", false, "extract embedded images")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show one task's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := bootstrap.Build(ctx, "docproc-cli")
			if err != nil {
				return err
			}
			defer app.Close()

			task, err := app.Facade.GetStatus(ctx, args[0])
			if err != nil {
				return err
			}
			printTask(task)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var statusFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := bootstrap.Build(ctx, "docproc-cli")
			if err != nil {
				return err
			}
			defer app.Close()

			filter := store.TaskFilter{Limit: 100}
			if statusFilter != "" {
				filter.Status = docmodel.Status(statusFilter)
			}
			tasks, err := app.Facade.ListTasks(ctx, filter)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				printTask(task)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status")
	return cmd
}

func pauseCmd() *cobra.Command {
	return taskActionCmd("pause", "Pause a task", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.Facade.Pause(ctx, id)
	})
}

func resumeCmd() *cobra.Command {
	return taskActionCmd("resume", "Resume a paused task", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.Facade.Resume(ctx, id)
	})
}

func cancelCmd() *cobra.Command {
	return taskActionCmd("cancel", "Cancel a task", func(ctx context.Context, app *bootstrap.App, id string) error {
		return app.Facade.Cancel(ctx, id)
	})
}

func taskActionCmd(use, short string, action func(context.Context, *bootstrap.App, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [task-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := bootstrap.Build(ctx, "docproc-cli")
			if err != nil {
				return err
			}
			defer app.Close()

			if err := action(ctx, app, args[0]); err != nil {
				return err
			}
			color.Green("%s: %s", use, args[0])
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-priority queue depths",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := bootstrap.Build(ctx, "docproc-cli")
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Facade.QueueStats(ctx)
			if err != nil {
				return err
			}
			for _, s := range stats {
				fmt.Printf("%-12s queued=%-4d active=%d\n", s.Priority, s.Queued, s.Active)
			}
			return nil
		},
	}
}

func printTask(task docmodel.Task) {
	fmt.Printf("%s  status=%-12s priority=%-10s progress=%.0f%%  %s\n",
		task.ID, task.Status, task.Priority, task.Progress*100, task.InputPath)
}
