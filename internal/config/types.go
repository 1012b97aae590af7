package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go
// duration strings ("500ms", "10s", "2m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Provider  ProviderConfig  `json:"provider"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Report    ReportConfig    `json:"report"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied through TELEGRAM_TOKEN.
	Token        string  `json:"token,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id that receives WARN+ log lines.
	GroupLog    string `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the snapshot store.
//
//	"storage": { "driver": "sqlite", "path": "./data/rankbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type ProviderConfig struct {
	BaseURL   string `json:"base_url,omitempty"`
	Region    string `json:"region,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

type SchedulerConfig struct {
	// Timezone names the IANA zone trigger times and calendar dates use.
	Timezone string        `json:"timezone,omitempty"`
	Collect  CollectConfig `json:"collect"`
	// QueueSize bounds the job dispatcher queue.
	QueueSize int `json:"queue_size,omitempty"`
	// JobTimeout bounds a single report job run; empty or "0s" disables it.
	// Collection is never cut short by it.
	JobTimeout string `json:"job_timeout,omitempty"`
}

type CollectConfig struct {
	// At is the daily collection time, "HH:MM" or "HH:MM:SS".
	At string `json:"at,omitempty"`
	// Delay separates consecutive provider calls.
	Delay string `json:"delay,omitempty"`
}

type ReportConfig struct {
	// ChartFormat is "png" or "html".
	ChartFormat string `json:"chart_format,omitempty"`
	ChunkLimit  int    `json:"chunk_limit,omitempty"`
}

// MetricsConfig controls the optional /metrics and /healthz listener. A
// non-loopback addr needs a token or allow_insecure.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}
