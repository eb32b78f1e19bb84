package source

import (
	"regexp"
	"time"
)

const (
	FormatHTML = "html"
	FormatFeed = "feed"

	ModeDocument = "document"
	ModeLink     = "link"
)

type Config struct {
	Name            string         // Derived from filename (without .yml extension)
	URL             string         `yaml:"url"`
	Origin          string         `yaml:"origin"`
	Format          string         `yaml:"format"`
	Mode            string         `yaml:"mode"`
	WebhookURL      string         `yaml:"webhook_url"`
	ErrorWebhookURL string         `yaml:"error_webhook_url"`
	RenderCommand   string         `yaml:"render_command"`
	Listing         ConfigListing  `yaml:"listing"`
	Settings        ConfigSettings `yaml:"settings"`

	titlePattern *regexp.Regexp
}

type ConfigListing struct {
	Container    string `yaml:"container" json:"container,omitempty"`
	Row          string `yaml:"row" json:"row,omitempty"`
	TitlePattern string `yaml:"title_pattern" json:"title_pattern,omitempty"`
}

type ConfigSettings struct {
	Enabled         bool    `yaml:"enabled"`
	RefreshInterval int     `yaml:"refresh_interval"` // seconds
	Timeout         int     `yaml:"timeout"`          // seconds
	RenderDPI       float64 `yaml:"render_dpi"`
	MaxAttachments  int     `yaml:"max_attachments"`
}

// TitlePattern is the compiled listing.title_pattern, nil when every title is accepted.
func (c *Config) TitlePattern() *regexp.Regexp {
	return c.titlePattern
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Settings.RefreshInterval) * time.Second
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}
