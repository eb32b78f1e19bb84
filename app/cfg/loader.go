package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	DataDir    string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for ledgers, downloads and run history"`

	// Notification
	WebhookURL      string `long:"webhook-url" env:"WEBHOOK_URL" description:"Default webhook for sources without their own"`
	ErrorWebhookURL string `long:"error-webhook-url" env:"ERROR_WEBHOOK_URL" description:"Webhook receiving run failures (optional)"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for source checks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Run mode
	Once        bool `long:"once" env:"ONCE" description:"Check every enabled source once, print the report and exit"`
	ResetLedger bool `long:"reset-ledger" description:"Empty the ledger of the selected sources before running"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; DocsNotifier/1.0)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Paris)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		Sources []string `positional-arg-name:"source" description:"Limit --once and --reset-ledger to these sources"`
	} `positional-args:"yes"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses args instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourcesDir:        raw.SourcesDir,
		DataDir:           raw.DataDir,
		WebhookURL:        raw.WebhookURL,
		ErrorWebhookURL:   raw.ErrorWebhookURL,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		Once:              raw.Once,
		ResetLedger:       raw.ResetLedger,
		Sources:           raw.Args.Sources,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"worker count":       cfg.WorkerCount,
		"scheduler interval": cfg.SchedulerInterval,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
