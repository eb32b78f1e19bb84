package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lysyi3m/docs-notifier/app/docs"
	"github.com/lysyi3m/docs-notifier/app/source"
)

type Options struct {
	Name    string
	URL     string
	Mode    string
	Timeout time.Duration
}

type Deps struct {
	Renderer  docs.Renderer
	Extractor docs.Extractor
	Ledger    Ledger
	Notifier  Notifier
	Fetcher   Fetcher   // document mode only
	Processor Processor // document mode only
	Reporter  Reporter  // optional
}

// Runner performs check runs for one source. Runs of one Runner must not overlap.
type Runner struct {
	opts Options
	deps Deps
}

func NewRunner(opts Options, deps Deps) *Runner {
	if opts.Mode == "" {
		opts.Mode = source.ModeDocument
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if deps.Processor == nil {
		deps.Processor = DocumentProcessor{}
	}
	return &Runner{opts: opts, deps: deps}
}

func (r *Runner) Name() string {
	return r.opts.Name
}

// Run checks the listing once and notifies every document not yet in the ledger.
// The returned error is set only when the run could not proceed; per-document
// failures are part of the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Source: r.opts.Name, StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	if err := r.validate(); err != nil {
		return report, err
	}

	markup, err := r.render(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		r.reportError(ctx, fmt.Sprintf("%s\n%v", r.opts.URL, err))
		return report, err
	}

	outcome := r.deps.Extractor.Extract(markup)
	report.Outcome = outcome.Status
	report.Reason = outcome.Reason

	switch outcome.Status {
	case docs.OutcomeLayoutChanged:
		slog.Warn("Listing layout changed, nothing processed", "source", r.opts.Name, "reason", outcome.Reason)
		r.reportError(ctx, fmt.Sprintf("%s\nlisting layout changed: %s", r.opts.URL, outcome.Reason))
		return report, nil
	case docs.OutcomeEmpty:
		slog.Info("Listing has no documents", "source", r.opts.Name)
		return report, nil
	}

	report.Candidates = len(outcome.Records)

	known, err := r.deps.Ledger.Load()
	if err != nil {
		return report, fmt.Errorf("failed to load ledger: %w", err)
	}

	toNotify, _ := docs.Diff(outcome.Records, known)
	report.Documents = skippedResults(outcome.Records, known)

	err = r.notifyAll(ctx, report, known, toNotify)
	sortOldestFirst(report.Documents, outcome.Records)
	if err != nil {
		return report, err
	}

	return report, nil
}

func (r *Runner) validate() error {
	missing := map[string]bool{
		"extractor": r.deps.Extractor == nil,
		"ledger":    r.deps.Ledger == nil,
		"notifier":  r.deps.Notifier == nil,
		"renderer":  r.deps.Renderer == nil,
	}
	if r.opts.Mode == source.ModeDocument {
		missing["fetcher"] = r.deps.Fetcher == nil
	}

	for name, isMissing := range missing {
		if isMissing {
			return fmt.Errorf("%w: %s for source %s", ErrConfigurationMissing, name, r.opts.Name)
		}
	}
	return nil
}

func (r *Runner) render(ctx context.Context) ([]byte, error) {
	renderCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	return r.deps.Renderer.Render(renderCtx, r.opts.URL)
}

// notifyAll emits toNotify in order and commits the ledger after every delivery.
// A rejected notification stops emission; the rest are deferred to the next run.
func (r *Runner) notifyAll(ctx context.Context, report *Report, known docs.IdentitySet, toNotify []docs.Record) error {
	committed := known.Clone()

	for i, record := range toNotify {
		result := DocumentResult{Record: record, Identity: docs.IdentityOf(record)}

		if err := ctx.Err(); err != nil {
			report.Documents = append(report.Documents, deferred(toNotify[i:])...)
			return err
		}

		delivered, notifyErr, err := r.process(ctx, record)
		switch {
		case err != nil:
			result.Status = StatusFailed
			result.Err = err
			slog.Error("Document processing failed", "source", r.opts.Name, "title", record.Title, "link", record.Link, "error", err)
			r.reportError(ctx, fmt.Sprintf("%s\n%v", record.Link, err))
			report.Documents = append(report.Documents, result)
			continue

		case !delivered:
			result.Status = StatusFailed
			result.Err = notifyErr
			report.Halted = true
			report.Documents = append(report.Documents, result)
			report.Documents = append(report.Documents, deferred(toNotify[i+1:])...)
			slog.Error("Notification failed, halting run", "source", r.opts.Name, "title", record.Title, "deferred", len(toNotify)-i-1, "error", notifyErr)
			r.reportError(ctx, fmt.Sprintf("%s\n%v", record.Link, notifyErr))
			return nil
		}

		committed.Add(result.Identity)
		if err := r.deps.Ledger.Save(committed); err != nil {
			result.Status = StatusNotified
			report.Documents = append(report.Documents, result)
			report.Documents = append(report.Documents, deferred(toNotify[i+1:])...)
			return fmt.Errorf("failed to save ledger: %w", err)
		}

		result.Status = StatusNotified
		report.Documents = append(report.Documents, result)
		slog.Info("Document notified", "source", r.opts.Name, "title", record.Title, "link", record.Link)
	}

	return nil
}

// process returns err for failures before the webhook is reached and notifyErr when the
// webhook rejected the message.
func (r *Runner) process(ctx context.Context, record docs.Record) (delivered bool, notifyErr error, err error) {
	docCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	if r.opts.Mode == source.ModeLink {
		result := r.deps.Notifier.NotifyRecord(docCtx, record)
		return result.Delivered, result.Err, nil
	}

	download, err := r.deps.Fetcher.Fetch(docCtx, record.Link)
	if err != nil {
		return false, nil, fmt.Errorf("failed to download document: %w", err)
	}

	metadata, pages, err := r.deps.Processor.Process(docCtx, download)
	if err != nil {
		return false, nil, fmt.Errorf("failed to process document: %w", err)
	}

	if metadata.DocNumber == docs.UnknownDocNumber {
		slog.Debug("Document metadata incomplete", "source", r.opts.Name, "link", record.Link)
	}

	result := r.deps.Notifier.NotifyDocument(docCtx, metadata, record.Link, pages)
	if !result.Delivered && result.Err == nil {
		result.Err = errors.New("notification not delivered")
	}
	return result.Delivered, result.Err, nil
}

func (r *Runner) reportError(ctx context.Context, message string) {
	if r.deps.Reporter != nil {
		r.deps.Reporter.Report(ctx, message)
	}
}

func skippedResults(records []docs.Record, known docs.IdentitySet) []DocumentResult {
	var results []DocumentResult
	seen := docs.NewIdentitySet()

	for i := len(records) - 1; i >= 0; i-- {
		id := docs.IdentityOf(records[i])
		if !known.Has(id) || seen.Has(id) {
			continue
		}
		seen.Add(id)
		results = append(results, DocumentResult{Record: records[i], Identity: id, Status: StatusSkipped})
	}
	return results
}

// sortOldestFirst orders results by their position in the listing, oldest first.
func sortOldestFirst(results []DocumentResult, records []docs.Record) {
	position := make(map[docs.Identity]int, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		id := docs.IdentityOf(records[i])
		if _, ok := position[id]; !ok {
			position[id] = len(position)
		}
	}

	slices.SortStableFunc(results, func(a, b DocumentResult) int {
		return cmp.Compare(position[a.Identity], position[b.Identity])
	})
}

func deferred(records []docs.Record) []DocumentResult {
	results := make([]DocumentResult, 0, len(records))
	for _, record := range records {
		results = append(results, DocumentResult{Record: record, Identity: docs.IdentityOf(record), Status: StatusDeferred})
	}
	return results
}
