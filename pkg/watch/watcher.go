// Package watch recompiles the templates of workflows whose diagrams changed on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/models"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule checks for changed diagrams every minute.
const DefaultSchedule = "* * * * *"

type WorkflowLister interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
}

type Recompiler interface {
	RecompileWorkflow(ctx context.Context, workflowID int64) ([]*models.Template, error)
}

type Watcher struct {
	schedule   string
	source     diagram.Source
	workflows  WorkflowLister
	recompiler Recompiler
	logger     *slog.Logger
	cron       *cron.Cron

	mu      sync.Mutex
	started time.Time
	seen    map[int64]time.Time
}

// NewWatcher validates schedule, a standard five field cron expression. Only diagram changes
// made after the watcher was created trigger a recompile.
func NewWatcher(
	logger *slog.Logger,
	schedule string,
	source diagram.Source,
	workflows WorkflowLister,
	recompiler Recompiler,
) (*Watcher, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid watch schedule: %w", err)
	}

	return &Watcher{
		schedule:   schedule,
		source:     source,
		workflows:  workflows,
		recompiler: recompiler,
		logger:     logger.With("module", "diagram_watcher", "schedule", schedule),
		started:    time.Now(),
		seen:       make(map[int64]time.Time),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting diagram watcher")

	log := cronLogger{logger: w.logger}
	w.cron = cron.New(cron.WithLogger(log), cron.WithChain(
		cron.SkipIfStillRunning(log),
		cron.Recover(log),
	))

	if _, err := w.cron.AddFunc(w.schedule, func() { w.run(ctx) }); err != nil {
		return fmt.Errorf("failed to add watch job: %w", err)
	}

	w.cron.Start()

	return nil
}

// Stop stops scheduling and waits for a running scan until ctx is done.
func (w *Watcher) Stop(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Stopping diagram watcher")

	if w.cron == nil {
		return nil
	}

	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) run(ctx context.Context) {
	recompiled, err := w.Scan(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Diagram scan finished with errors", "error", err, "recompiled", recompiled)

		return
	}

	if recompiled > 0 {
		w.logger.InfoContext(ctx, "Diagram scan finished", "recompiled", recompiled)
	}
}

// Scan recompiles every active workflow whose diagram was modified since the previous scan and
// returns how many workflows were recompiled. A failing workflow does not stop the scan; it is
// retried on the next scan.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	workflows, err := w.workflows.Workflows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list workflows: %w", err)
	}

	var (
		recompiled int
		errs       []error
	)

	for _, workflow := range workflows {
		if !workflow.Active {
			continue
		}

		modified, err := w.source.Modified(ctx, workflow.File)
		if err != nil {
			if diagram.IsNotFound(err) {
				w.logger.WarnContext(ctx, "Diagram of workflow is missing", "workflow_id", workflow.ID, "file", workflow.File)

				continue
			}

			errs = append(errs, err)

			continue
		}

		last, ok := w.seen[workflow.ID]
		if !ok {
			last = w.started
		}

		if !modified.After(last) {
			continue
		}

		if _, err := w.recompiler.RecompileWorkflow(ctx, workflow.ID); err != nil {
			errs = append(errs, fmt.Errorf("workflow %d: %w", workflow.ID, err))

			continue
		}

		w.seen[workflow.ID] = modified
		recompiled++
	}

	return recompiled, errors.Join(errs...)
}

// cronLogger forwards cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
