package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/docs-notifier/app/docs"
	"github.com/lysyi3m/docs-notifier/app/notifier"
)

var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrConfigurationMissing = errors.New("configuration missing")
)

type DocumentStatus string

const (
	StatusSkipped  DocumentStatus = "skipped"
	StatusNotified DocumentStatus = "notified"
	StatusFailed   DocumentStatus = "failed"
	StatusDeferred DocumentStatus = "deferred"
)

type DocumentResult struct {
	Record   docs.Record
	Identity docs.Identity
	Status   DocumentStatus
	Err      error
}

// Report describes one run. Documents are listed oldest first, in listing order.
type Report struct {
	Source     string
	Outcome    docs.OutcomeStatus
	Reason     string
	Candidates int
	Halted     bool // a notification failed and the remaining documents were deferred
	Documents  []DocumentResult
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) Count(status DocumentStatus) int {
	n := 0
	for _, d := range r.Documents {
		if d.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type Ledger interface {
	Load() (docs.IdentitySet, error)
	Save(ids docs.IdentitySet) error
}

type Notifier interface {
	NotifyRecord(ctx context.Context, record docs.Record) notifier.Result
	NotifyDocument(ctx context.Context, metadata docs.Metadata, link string, pages []docs.Page) notifier.Result
}

type Fetcher interface {
	Fetch(ctx context.Context, docURL string) (*docs.Download, error)
}

// Processor turns a downloaded document into notification metadata and page images.
type Processor interface {
	Process(ctx context.Context, download *docs.Download) (docs.Metadata, []docs.Page, error)
}

type Reporter interface {
	Report(ctx context.Context, message string)
}
