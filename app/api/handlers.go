package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/docs-notifier/app/database"
	"github.com/lysyi3m/docs-notifier/app/source"
	"github.com/lysyi3m/docs-notifier/app/tasks"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

func NewHandler(configCache *source.ConfigCache, runRepo database.RunRepository,
	scheduler tasks.TaskSchedulerInterface, readLedger LedgerReader, version string) *Handler {
	return &Handler{
		configCache: configCache,
		runRepo:     runRepo,
		scheduler:   scheduler,
		readLedger:  readLedger,
		version:     version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"version":               h.version,
		"loaded_configurations": h.configCache.GetConfigCount(),
		"enabled_sources":       len(h.configCache.GetEnabledConfigs()),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.runRepo.GetStats("")
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": h.configCache.GetConfigCount(),
		"runs":    stats,
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, name := range names {
		sourceConfig := configs[name]
		sourceInfo := map[string]interface{}{
			"name":             sourceConfig.Name,
			"url":              sourceConfig.URL,
			"format":           sourceConfig.Format,
			"mode":             sourceConfig.Mode,
			"enabled":          sourceConfig.Settings.Enabled,
			"refresh_interval": sourceConfig.RefreshInterval().String(),
			"busy":             h.scheduler.IsBusy(name),
		}

		if lastRun, err := h.runRepo.GetLastRun(name); err == nil && lastRun != nil {
			sourceInfo["last_run"] = lastRun
		}

		if ids, err := h.readLedger(name); err == nil {
			sourceInfo["ledger_size"] = len(ids)
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSourceDetails(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	details := map[string]interface{}{
		"name":             name,
		"url":              sourceConfig.URL,
		"origin":           sourceConfig.Origin,
		"format":           sourceConfig.Format,
		"mode":             sourceConfig.Mode,
		"enabled":          sourceConfig.Settings.Enabled,
		"refresh_interval": sourceConfig.RefreshInterval().String(),
		"timeout":          sourceConfig.Timeout().String(),
		"render_command":   sourceConfig.RenderCommand != "",
		"listing":          sourceConfig.Listing,
		"busy":             h.scheduler.IsBusy(name),
	}

	ids, err := h.readLedger(name)
	if err != nil {
		slog.Error("Ledger error", "operation", "read_ledger", "source", name, "error", err)
	} else {
		details["ledger_size"] = len(ids)
	}

	stats, err := h.runRepo.GetStats(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	details["runs"] = stats

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIGetSourceRuns(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, err := h.runRepo.GetRecentRuns(name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_runs", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}

	c.JSON(http.StatusOK, gin.H{
		"source": name,
		"runs":   runs,
		"total":  len(runs),
	})
}

func (h *Handler) APIGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runRepo.GetRun(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	documents, err := h.runRepo.GetRunDocuments(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_run_documents", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if documents == nil {
		documents = []database.RunDocument{}
	}

	c.JSON(http.StatusOK, gin.H{
		"run":       run,
		"documents": documents,
	})
}

func (h *Handler) APICheckSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	h.enqueue(c, name, "check", h.scheduler.CheckSource(name, tasks.TriggerAPI))
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	if _, err := h.configCache.LoadConfig(name); err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	h.enqueue(c, name, "check", h.scheduler.CheckSource(name, tasks.TriggerReload))
}

func (h *Handler) APIResetLedger(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	h.enqueue(c, name, "reset", h.scheduler.ResetLedger(name))
}

func (h *Handler) enqueue(c *gin.Context, name, action string, err error) {
	switch {
	case errors.Is(err, tasks.ErrSourceBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Source is busy", "source": name})
	case err != nil:
		slog.Error("Error enqueueing task", "source", name, "action", action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue task",
			"details": err.Error(),
		})
	default:
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"source":  name,
			"action":  action,
		})
	}
}
