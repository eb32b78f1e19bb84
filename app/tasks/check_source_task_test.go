package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/docs-notifier/app/database"
	"github.com/lysyi3m/docs-notifier/app/docs"
	"github.com/lysyi3m/docs-notifier/app/ledger"
	"github.com/lysyi3m/docs-notifier/app/pipeline"
	"github.com/lysyi3m/docs-notifier/app/source"
)

const listingHTML = `<html><body><table class="views-table"><tbody>
<tr><td><a href="/d5.pdf">Doc 5 - Decision</a></td><td>01.06.2025 15:02</td></tr>
<tr><td><a href="/r1.pdf">Results</a></td><td>01.06.2025 14:40</td></tr>
<tr><td><a href="/d4.pdf">Doc 4 - Summons</a></td><td>01.06.2025 14:11</td></tr>
</tbody></table></body></html>`

func loadSource(t *testing.T, listingURL string) *source.Config {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf("url: %q\norigin: \"https://www.fia.com\"\nmode: link\nsettings:\n  enabled: true\n", listingURL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fia.yml"), []byte(content), 0644))

	configCache := source.NewConfigCache(dir)
	require.NoError(t, configCache.Run())

	sourceConfig, err := configCache.GetConfig("fia")
	require.NoError(t, err)
	return sourceConfig
}

func newRunRepository(t *testing.T) *database.SQLRunRepository {
	t.Helper()

	db, err := database.NewConnection(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	return database.NewRunRepository(db)
}

func TestCheckSourceTask_RecordsRun(t *testing.T) {
	listing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer listing.Close()

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	repo := newRunRepository(t)
	env := pipeline.Environment{DataDir: t.TempDir(), WebhookURL: webhook.URL}

	task := NewCheckSourceTask(loadSource(t, listing.URL), env, repo, TriggerAPI)
	task.Start()
	require.NoError(t, task.Execute(context.Background()))

	require.NotNil(t, task.Report)
	assert.Equal(t, 2, task.Report.Count(pipeline.StatusNotified))
	assert.False(t, task.CanRetry())

	run, err := repo.GetLastRun("fia")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, database.RunStatusCompleted, run.Status)
	assert.Equal(t, TriggerAPI, run.TriggeredBy)
	assert.Equal(t, "found", run.Outcome)
	assert.Equal(t, 2, run.Notified)

	documents, err := repo.GetRunDocuments(run.ID)
	require.NoError(t, err)
	require.Len(t, documents, 2)
	assert.Equal(t, "Doc 4 - Summons", documents[0].Title)
	assert.Equal(t, "notified", documents[0].Status)
}

func TestCheckSourceTask_SourceUnavailableIsRetryable(t *testing.T) {
	listing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer listing.Close()

	repo := newRunRepository(t)
	env := pipeline.Environment{DataDir: t.TempDir(), WebhookURL: "https://discord.com/api/webhooks/1/abc"}

	task := NewCheckSourceTask(loadSource(t, listing.URL), env, repo, TriggerScheduler)
	err := task.Execute(context.Background())

	assert.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
	assert.True(t, task.CanRetry())

	task.RetryCount = task.MaxRetries
	assert.False(t, task.CanRetry())

	run, err := repo.GetLastRun("fia")
	require.NoError(t, err)
	assert.Equal(t, database.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "source unavailable")
}

func TestCheckSourceTask_MissingWebhookIsNotRetryable(t *testing.T) {
	task := NewCheckSourceTask(loadSource(t, "https://www.fia.com/documents"), pipeline.Environment{DataDir: t.TempDir()}, nil, TriggerOnce)

	err := task.Execute(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrConfigurationMissing)
	assert.False(t, task.CanRetry())
}

func TestResetLedgerTask(t *testing.T) {
	dataDir := t.TempDir()
	file := ledger.NewFile(pipeline.LedgerPath(dataDir, "fia"))
	require.NoError(t, file.Save(docs.NewIdentitySet("aaa", "bbb")))

	task := NewResetLedgerTask("fia", dataDir)
	assert.False(t, task.CanRetry())
	require.NoError(t, task.Execute(context.Background()))

	ids, err := file.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
