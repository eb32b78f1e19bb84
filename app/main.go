package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lysyi3m/docs-notifier/app/api"
	"github.com/lysyi3m/docs-notifier/app/cfg"
	"github.com/lysyi3m/docs-notifier/app/database"
	"github.com/lysyi3m/docs-notifier/app/docs"
	"github.com/lysyi3m/docs-notifier/app/ledger"
	"github.com/lysyi3m/docs-notifier/app/notifier"
	"github.com/lysyi3m/docs-notifier/app/pipeline"
	"github.com/lysyi3m/docs-notifier/app/source"
	"github.com/lysyi3m/docs-notifier/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	slog.Info("Starting Docs Notifier", "version", appCfg.Version, "sources_dir", appCfg.SourcesDir, "data_dir", appCfg.DataDir)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		fatal("Failed to load source configurations", err)
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount(), "enabled", len(configCache.GetEnabledConfigs()))

	if appCfg.Once || !appCfg.ResetLedger {
		names := appCfg.Sources
		if !appCfg.Once {
			names = nil
		}
		if err := checkWebhooks(configCache, names, appCfg.WebhookURL); err != nil {
			fatal("Invalid configuration", err)
		}
	}

	db, err := database.NewConnection(appCfg.DataDir)
	if err != nil {
		fatal("Failed to open database", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		fatal("Failed to run migrations", err)
	}
	slog.Debug("Database ready", "path", db.Path(), "migration_version", version, "dirty", dirty)

	runRepo := database.NewRunRepository(db)

	env := pipeline.Environment{
		DataDir:         appCfg.DataDir,
		WebhookURL:      appCfg.WebhookURL,
		ErrorWebhookURL: appCfg.ErrorWebhookURL,
		UserAgent:       appCfg.UserAgent,
		HTTPClient:      &http.Client{Timeout: 5 * time.Minute},
		Limiters:        &notifier.Limiters{},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.ResetLedger {
		if err := resetLedgers(ctx, configCache, appCfg); err != nil {
			fatal("Failed to reset ledgers", err)
		}
	}

	if appCfg.Once {
		code := runOnce(ctx, os.Stdout, configCache, env, runRepo, appCfg.Sources)
		db.Close()
		os.Exit(code)
	}

	if appCfg.ResetLedger {
		return
	}

	serve(ctx, appCfg, configCache, env, runRepo)
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func serve(ctx context.Context, appCfg *cfg.Cfg, configCache *source.ConfigCache, env pipeline.Environment, runRepo database.RunRepository) {
	scheduler := tasks.NewScheduler(configCache, runRepo, env,
		time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)

	watcher, err := source.NewWatcher(configCache, func(name string, sourceConfig *source.Config) {
		if sourceConfig == nil || !sourceConfig.Settings.Enabled {
			return
		}
		if err := scheduler.CheckSource(name, tasks.TriggerReload); err != nil && !errors.Is(err, tasks.ErrSourceBusy) {
			slog.Warn("Failed to enqueue check after reload", "source", name, "error", err)
		}
	})
	if err != nil {
		slog.Warn("Source watcher disabled", "error", err)
	} else {
		go watcher.Run(ctx)
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler.Start()

	handler := api.NewHandler(configCache, runRepo, scheduler, func(name string) (docs.IdentitySet, error) {
		return ledger.NewFile(pipeline.LedgerPath(appCfg.DataDir, name)).Load()
	}, appCfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Docs Notifier shutdown complete")
}

// selectSources returns the named sources, or every enabled one when names is empty.
func selectSources(configCache *source.ConfigCache, names []string) ([]*source.Config, error) {
	if len(names) == 0 {
		enabled := configCache.GetEnabledConfigs()
		selected := make([]*source.Config, 0, len(enabled))
		for _, sourceConfig := range enabled {
			selected = append(selected, sourceConfig)
		}
		sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })
		return selected, nil
	}

	selected := make([]*source.Config, 0, len(names))
	for _, name := range slices.Compact(slices.Sorted(slices.Values(names))) {
		sourceConfig, err := configCache.GetConfig(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, sourceConfig)
	}
	return selected, nil
}

// checkWebhooks fails when a selected source has no webhook and no global one is set.
func checkWebhooks(configCache *source.ConfigCache, names []string, globalWebhook string) error {
	selected, err := selectSources(configCache, names)
	if err != nil {
		return err
	}

	var missing []string
	for _, sourceConfig := range selected {
		if cmp.Or(sourceConfig.WebhookURL, globalWebhook) == "" {
			missing = append(missing, sourceConfig.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no webhook URL for %s", pipeline.ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

func resetLedgers(ctx context.Context, configCache *source.ConfigCache, appCfg *cfg.Cfg) error {
	selected, err := selectSources(configCache, appCfg.Sources)
	if err != nil {
		return err
	}

	for _, sourceConfig := range selected {
		task := tasks.NewResetLedgerTask(sourceConfig.Name, appCfg.DataDir)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			return fmt.Errorf("source %s: %w", sourceConfig.Name, err)
		}
	}
	return nil
}

// runOnce checks the selected sources one after another and prints their reports.
// The exit code is 1 when any run could not complete.
func runOnce(ctx context.Context, out io.Writer, configCache *source.ConfigCache, env pipeline.Environment,
	runRepo database.RunRepository, names []string) int {
	selected, err := selectSources(configCache, names)
	if err != nil {
		slog.Error("Failed to select sources", "error", err)
		return 1
	}
	if len(selected) == 0 {
		slog.Warn("No enabled sources to check")
		return 0
	}

	code := 0
	for _, sourceConfig := range selected {
		task := tasks.NewCheckSourceTask(sourceConfig, env, runRepo, tasks.TriggerOnce)
		task.Start()

		err := task.Execute(ctx)
		if err != nil {
			slog.Error("Source check failed", "source", sourceConfig.Name, "error", err)
			code = 1
		}
		printReport(out, sourceConfig.Name, task.Report, err)
	}
	return code
}

func printReport(out io.Writer, name string, report *pipeline.Report, runErr error) {
	if report == nil {
		fmt.Fprintf(out, "%s: %v\n", name, runErr)
		return
	}

	fmt.Fprintf(out, "%s: outcome=%s candidates=%d notified=%d skipped=%d failed=%d deferred=%d (%s)\n",
		name, cmpOr(string(report.Outcome), "none"), report.Candidates,
		report.Count(pipeline.StatusNotified), report.Count(pipeline.StatusSkipped),
		report.Count(pipeline.StatusFailed), report.Count(pipeline.StatusDeferred),
		report.Duration().Round(time.Millisecond))

	if report.Reason != "" {
		fmt.Fprintf(out, "  reason: %s\n", report.Reason)
	}
	if runErr != nil {
		fmt.Fprintf(out, "  error: %v\n", runErr)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, doc := range report.Documents {
		if doc.Status == pipeline.StatusSkipped {
			continue
		}
		line := fmt.Sprintf("  %s\t%s\t%s", doc.Status, doc.Record.Title, doc.Record.Link)
		if doc.Err != nil {
			line += "\t" + doc.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
}

func cmpOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
