package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/docs-notifier/app/ledger"
	"github.com/lysyi3m/docs-notifier/app/pipeline"
)

// ResetLedgerTask empties a source's ledger so that its current listing is notified again.
type ResetLedgerTask struct {
	Task
	ledger *ledger.File
}

func NewResetLedgerTask(sourceName, dataDir string) *ResetLedgerTask {
	task := &ResetLedgerTask{
		Task:   NewTask(TaskTypeResetLedger, sourceName),
		ledger: ledger.NewFile(pipeline.LedgerPath(dataDir, sourceName)),
	}
	task.MaxRetries = 0
	return task
}

func (t *ResetLedgerTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	previous, err := t.ledger.Load()
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	if err := t.ledger.Reset(); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}

	slog.Info("Task completed",
		"type", "ResetLedger",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"removed", len(previous))

	return nil
}
