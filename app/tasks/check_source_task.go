package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/docs-notifier/app/database"
	"github.com/lysyi3m/docs-notifier/app/pipeline"
	"github.com/lysyi3m/docs-notifier/app/source"
)

const (
	TriggerScheduler = "scheduler"
	TriggerAPI       = "api"
	TriggerReload    = "reload"
	TriggerOnce      = "once"
)

type CheckSourceTask struct {
	Task
	SourceConfig *source.Config
	Report       *pipeline.Report // set after Execute
	env          pipeline.Environment
	runRepo      database.RunRepository // nil disables history
	trigger      string
	retryable    bool
}

func NewCheckSourceTask(sourceConfig *source.Config, env pipeline.Environment, runRepo database.RunRepository, trigger string) *CheckSourceTask {
	return &CheckSourceTask{
		Task:         NewTask(TaskTypeCheckSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		env:          env,
		runRepo:      runRepo,
		trigger:      trigger,
	}
}

// CanRetry allows a retry only when the listing itself could not be fetched.
// Every other failure is settled by the next scheduled run through the ledger.
func (t *CheckSourceTask) CanRetry() bool {
	return t.retryable && t.Task.CanRetry()
}

func (t *CheckSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.retryable = false

	run := t.startRun()

	runner, err := pipeline.FromConfig(t.SourceConfig, t.env)
	if err != nil {
		t.finishRun(run, nil, err)
		return fmt.Errorf("failed to prepare source: %w", err)
	}

	report, err := runner.Run(ctx)
	t.Report = report
	t.retryable = errors.Is(err, pipeline.ErrSourceUnavailable)
	t.finishRun(run, report, err)

	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "CheckSource",
		"source", t.SourceName,
		"trigger", t.trigger,
		"duration", t.GetDuration(),
		"outcome", report.Outcome,
		"candidates", report.Candidates,
		"notified", report.Count(pipeline.StatusNotified),
		"skipped", report.Count(pipeline.StatusSkipped),
		"failed", report.Count(pipeline.StatusFailed),
		"deferred", report.Count(pipeline.StatusDeferred))

	return nil
}

func (t *CheckSourceTask) startRun() *database.Run {
	if t.runRepo == nil {
		return nil
	}

	run, err := t.runRepo.CreateRun(t.SourceName, t.trigger)
	if err != nil {
		slog.Warn("Failed to record run start", "source", t.SourceName, "error", err)
		return nil
	}
	return run
}

func (t *CheckSourceTask) finishRun(run *database.Run, report *pipeline.Report, runErr error) {
	if run == nil {
		return
	}

	result := database.RunResult{Status: database.RunStatusCompleted}
	if runErr != nil {
		result.Status = database.RunStatusFailed
		result.Error = runErr.Error()
	}

	if report != nil {
		result.Outcome = string(report.Outcome)
		result.Reason = report.Reason
		result.Candidates = report.Candidates
		result.Notified = report.Count(pipeline.StatusNotified)
		result.Skipped = report.Count(pipeline.StatusSkipped)
		result.Failed = report.Count(pipeline.StatusFailed)
		result.Deferred = report.Count(pipeline.StatusDeferred)

		if err := t.runRepo.AddDocuments(run.ID, runDocuments(report)); err != nil {
			slog.Warn("Failed to record run documents", "source", t.SourceName, "run_id", run.ID, "error", err)
		}
	}

	if err := t.runRepo.FinishRun(run.ID, result); err != nil {
		slog.Warn("Failed to record run result", "source", t.SourceName, "run_id", run.ID, "error", err)
	}
}

func runDocuments(report *pipeline.Report) []database.RunDocument {
	documents := make([]database.RunDocument, 0, len(report.Documents))
	for i, doc := range report.Documents {
		runDoc := database.RunDocument{
			Position: i,
			Identity: string(doc.Identity),
			Title:    doc.Record.Title,
			Link:     doc.Record.Link,
			Status:   string(doc.Status),
		}
		if doc.Err != nil {
			runDoc.Error = doc.Err.Error()
		}
		documents = append(documents, runDoc)
	}
	return documents
}
