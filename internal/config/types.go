package config

// Config is moerduo's on-disk configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "500ms", "30s", "1m").
// Unknown fields are rejected so typos surface at startup instead of being
// silently ignored.
type Config struct {
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Player      PlayerConfig      `json:"player,omitempty"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"` // TRACE/DEBUG/INFO/WARN/ERROR
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	// Path is the SQLite database file. Created (with parent dirs) if missing.
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// PlayerConfig controls the external playback process.
//
// Command is a shell-quoted template with {path} and {volume} placeholders;
// if omitted, an ffplay invocation is used.
type PlayerConfig struct {
	Command string `json:"command,omitempty"`
}

type SchedulerConfig struct {
	Enabled      bool   `json:"enabled"`
	TickInterval string `json:"tick_interval,omitempty"` // default "30s"
	Timezone     string `json:"timezone,omitempty"`      // IANA TZ; empty = system local
}

type MaintenanceConfig struct {
	Enabled       bool   `json:"enabled"`
	Schedule      string `json:"schedule,omitempty"` // cron spec; default "30 3 * * *"
	RetentionDays int    `json:"retention_days,omitempty"`
}

// Default returns the config used when no file exists yet: console logging,
// a local database file, scheduler on.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "INFO", Console: true},
		Storage:   StorageConfig{Path: "./moerduo.db"},
		Scheduler: SchedulerConfig{Enabled: true},
		Maintenance: MaintenanceConfig{
			Enabled: true,
		},
	}
}

// Validate checks cross-field constraints that the strict decoder can't.
func (c *Config) Validate() error {
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.tick_interval", c.Scheduler.TickInterval); err != nil {
		return err
	}
	if c.Maintenance.RetentionDays < 0 {
		return fieldError("maintenance.retention_days", "must be >= 0")
	}
	return nil
}
