package source

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/docs-notifier/app/docs"
)

const configExt = ".yml"

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Dir() string {
	return cc.sourcesDir
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*"+configExt))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name, ok := NameFromPath(file)
		if !ok {
			continue
		}

		config, err := cc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "source", name, "enabled", config.Settings.Enabled, "format", config.Format, "mode", config.Mode)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name string) (*Config, error) {
	configFile := cc.getConfigFilePath(name)
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) RemoveConfig(name string) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	_, ok := cc.cache[name]
	delete(cc.cache, name)
	return ok
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	return maps.Clone(cc.cache)
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Format == "" {
		config.Format = FormatHTML
	}
	if config.Mode == "" {
		config.Mode = ModeDocument
	}
	if config.Origin == "" {
		if u, err := url.Parse(config.URL); err == nil && u.IsAbs() {
			config.Origin = u.Scheme + "://" + u.Host
		}
	}
	if config.Format == FormatHTML && config.Listing.TitlePattern == "" {
		config.Listing.TitlePattern = docs.DefaultTitlePattern
	}
	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = 300
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}
	if config.Settings.RenderDPI == 0 {
		config.Settings.RenderDPI = docs.DefaultRenderDPI
	}
	if config.Settings.MaxAttachments == 0 {
		config.Settings.MaxAttachments = 10
	}
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"source name": config.Name,
		"source URL":  config.URL,
		"origin":      config.Origin,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	absoluteURLs := map[string]string{
		"source URL": config.URL,
		"origin":     config.Origin,
	}

	for fieldName, fieldValue := range absoluteURLs {
		if u, err := url.Parse(fieldValue); err != nil || !u.IsAbs() {
			return fmt.Errorf("%s must be an absolute URL: %q", fieldName, fieldValue)
		}
	}

	nonNegativeFields := map[string]int{
		"refresh interval": config.Settings.RefreshInterval,
		"timeout":          config.Settings.Timeout,
		"max attachments":  config.Settings.MaxAttachments,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if config.Settings.RenderDPI < 0 {
		return fmt.Errorf("render dpi must be non-negative")
	}

	validValues := map[string]map[string]bool{
		"format": {FormatHTML: true, FormatFeed: true},
		"mode":   {ModeDocument: true, ModeLink: true},
	}
	values := map[string]string{
		"format": config.Format,
		"mode":   config.Mode,
	}

	for fieldName, allowed := range validValues {
		if !allowed[values[fieldName]] {
			return fmt.Errorf("invalid %s: %s", fieldName, values[fieldName])
		}
	}

	if config.Listing.TitlePattern != "" {
		pattern, err := regexp.Compile(config.Listing.TitlePattern)
		if err != nil {
			return fmt.Errorf("invalid title pattern: %w", err)
		}
		config.titlePattern = pattern
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(name string) string {
	return filepath.Join(cc.sourcesDir, name+configExt)
}

// NameFromPath returns the source name for a config file path.
func NameFromPath(path string) (string, bool) {
	fileName := filepath.Base(path)
	if strings.HasPrefix(fileName, ".") || !strings.HasSuffix(fileName, configExt) {
		return "", false
	}
	return strings.TrimSuffix(fileName, configExt), true
}
