package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/docs-notifier/app/notifier"
	"github.com/lysyi3m/docs-notifier/app/source"
)

func loadSource(t *testing.T, content string) *source.Config {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fia.yml"), []byte(content), 0644))

	config, err := source.NewConfigCache(dir).LoadConfig("fia")
	require.NoError(t, err)
	return config
}

func TestFromConfig_MissingWebhook(t *testing.T) {
	config := loadSource(t, "url: \"https://www.fia.com/documents\"\n")

	_, err := FromConfig(config, Environment{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrConfigurationMissing)
}

func TestFromConfig_LinkModeAgainstServers(t *testing.T) {
	listingServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(scenarioListing)
	}))
	defer listingServer.Close()

	var (
		mu     sync.Mutex
		titles []string
	)
	webhookServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var payload struct {
			Embeds []struct {
				Title string `json:"title"`
			} `json:"embeds"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Embeds) == 1 {
			mu.Lock()
			titles = append(titles, payload.Embeds[0].Title)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhookServer.Close()

	config := loadSource(t, fmt.Sprintf("url: %q\norigin: %q\nmode: link\n", listingServer.URL+"/documents", origin))
	dataDir := t.TempDir()

	runner, err := FromConfig(config, Environment{
		DataDir:    dataDir,
		WebhookURL: webhookServer.URL,
		UserAgent:  "docs-notifier-test",
		Limiters:   &notifier.Limiters{},
	})
	require.NoError(t, err)
	assert.Equal(t, "fia", runner.Name())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusNotified))
	assert.Equal(t, []string{"Doc 4 - Summons", "Doc 5 - Decision"}, titles)

	data, err := os.ReadFile(LedgerPath(dataDir, "fia"))
	require.NoError(t, err)
	assert.Len(t, data, 2*65)
}
