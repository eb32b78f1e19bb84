package cfg

type Cfg struct {
	// Storage
	SourcesDir string
	DataDir    string

	// Notification
	WebhookURL      string
	ErrorWebhookURL string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Run mode
	Once        bool
	ResetLedger bool
	Sources     []string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
