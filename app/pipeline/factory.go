package pipeline

import (
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/lysyi3m/docs-notifier/app/docs"
	"github.com/lysyi3m/docs-notifier/app/ledger"
	"github.com/lysyi3m/docs-notifier/app/notifier"
	"github.com/lysyi3m/docs-notifier/app/source"
)

// Environment carries the process-wide settings shared by every source.
type Environment struct {
	DataDir         string
	WebhookURL      string // used when a source has none
	ErrorWebhookURL string
	UserAgent       string
	HTTPClient      *http.Client
	Limiters        *notifier.Limiters // nil disables rate limiting
}

func LedgerPath(dataDir, name string) string {
	return filepath.Join(dataDir, "ledgers", name+".txt")
}

func DownloadDir(dataDir, name string) string {
	return filepath.Join(dataDir, "downloads", name)
}

// FromConfig wires a Runner for a source. A source without any webhook fails with
// ErrConfigurationMissing before anything touches the network.
func FromConfig(config *source.Config, env Environment) (*Runner, error) {
	if env.HTTPClient == nil {
		env.HTTPClient = &http.Client{Timeout: config.Timeout()}
	}

	webhook, err := newWebhook(cmp.Or(config.WebhookURL, env.WebhookURL), config, env)
	if err != nil {
		if errors.Is(err, notifier.ErrMissingWebhook) {
			return nil, fmt.Errorf("%w: no webhook for source %s", ErrConfigurationMissing, config.Name)
		}
		return nil, err
	}

	var reporter Reporter
	if errorURL := cmp.Or(config.ErrorWebhookURL, env.ErrorWebhookURL); errorURL != "" {
		errorWebhook, err := newWebhook(errorURL, config, env)
		if err != nil {
			return nil, fmt.Errorf("invalid error webhook for source %s: %w", config.Name, err)
		}
		reporter = notifier.NewErrorReporter(errorWebhook)
	}

	extractor, err := config.NewExtractor()
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor for source %s: %w", config.Name, err)
	}

	var renderer docs.Renderer = docs.NewHTTPRenderer(env.HTTPClient, env.UserAgent)
	if config.RenderCommand != "" {
		renderer, err = docs.NewCommandRenderer(config.RenderCommand)
		if err != nil {
			return nil, fmt.Errorf("invalid render command for source %s: %w", config.Name, err)
		}
	}

	deps := Deps{
		Renderer:  renderer,
		Extractor: extractor,
		Ledger:    ledger.NewFile(LedgerPath(env.DataDir, config.Name)),
		Notifier:  webhook,
		Reporter:  reporter,
	}

	if config.Mode == source.ModeDocument {
		deps.Fetcher = docs.NewDownloader(env.HTTPClient, env.UserAgent, DownloadDir(env.DataDir, config.Name))
		deps.Processor = DocumentProcessor{RenderDPI: config.Settings.RenderDPI}
	}

	return NewRunner(Options{
		Name:    config.Name,
		URL:     config.URL,
		Mode:    config.Mode,
		Timeout: config.Timeout(),
	}, deps), nil
}

func newWebhook(webhookURL string, config *source.Config, env Environment) (*notifier.Webhook, error) {
	opts := notifier.WebhookOptions{
		HTTPClient:     env.HTTPClient,
		MaxAttachments: config.Settings.MaxAttachments,
		UserAgent:      env.UserAgent,
	}
	if env.Limiters != nil && webhookURL != "" {
		opts.Limiter = env.Limiters.For(webhookURL)
	}
	return notifier.NewWebhook(webhookURL, opts)
}
