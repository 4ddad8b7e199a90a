package config

// Config is the full process configuration. Files may be JSON or YAML;
// unknown keys are rejected so typos surface at startup instead of being
// silently ignored.
//
// All durations are Go duration strings (e.g. "500ms", "5s", "1m").
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
}

type DiscordConfig struct {
	Token string `json:"token"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RemindersConfig tunes the reminder engine and its periodic driver.
//
// Defaults (when fields are omitted/zero):
//   - schedule: "@every 1m"
//   - max_chunk_len: 2000
//   - send_gap: "1s"
//   - rate_limit_wait: "5s"
//   - campaign_gap: "2s"
//   - dry_run: false
type RemindersConfig struct {
	// Schedule is a cron spec or @every interval for the due-campaign
	// runner. Empty disables the periodic runner.
	Schedule string `json:"schedule,omitempty"`

	// DryRun forces every send into preview mode. Operational kill
	// switch against accidental mass mentions.
	DryRun bool `json:"dry_run,omitempty"`

	MaxChunkLen   int    `json:"max_chunk_len,omitempty"`
	SendGap       string `json:"send_gap,omitempty"`
	RateLimitWait string `json:"rate_limit_wait,omitempty"`
	CampaignGap   string `json:"campaign_gap,omitempty"`
}
