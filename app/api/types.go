package api

import (
	"github.com/lysyi3m/docs-notifier/app/database"
	"github.com/lysyi3m/docs-notifier/app/docs"
	"github.com/lysyi3m/docs-notifier/app/source"
	"github.com/lysyi3m/docs-notifier/app/tasks"
)

// LedgerReader opens the ledger of a source for inspection.
type LedgerReader func(name string) (docs.IdentitySet, error)

type Handler struct {
	configCache *source.ConfigCache
	runRepo     database.RunRepository
	scheduler   tasks.TaskSchedulerInterface
	readLedger  LedgerReader
	version     string
}
