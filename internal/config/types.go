package config

import "time"

// Config is the root configuration structure for seatwatch.
// Serialised to ~/.seatwatch/config.json.
type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"  json:"scraper"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Dedup    DedupConfig    `mapstructure:"dedup"    json:"dedup"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Watch    WatchConfig    `mapstructure:"watch"    json:"watch"`
}

// ScraperConfig points at the inputs produced around the scrape cycle.
type ScraperConfig struct {
	// DestinationsFile is the destination → recipient mapping (JSON or YAML).
	DestinationsFile string `mapstructure:"destinations_file" json:"destinations_file"`
	// RecordsFile is where the extractor leaves the records of the last scrape.
	RecordsFile string `mapstructure:"records_file" json:"records_file"`
	// DestinationMarker precedes the destination id in a course URL.
	DestinationMarker string `mapstructure:"destination_marker" json:"destination_marker"`
}

// NotifyConfig controls the dispatcher and its channels.
type NotifyConfig struct {
	// Enable is the dispatcher kill-switch.
	Enable bool `mapstructure:"enable" json:"enable"`
	// Streams is the space separated list of channel names, e.g. "Email SMS".
	Streams string `mapstructure:"streams" json:"streams"`
	// ConfigFile holds per-channel parameters: {"Email": {"mail_sender": ...}}.
	ConfigFile string `mapstructure:"config_file" json:"config_file"`
	// TemplateDir is the directory email templates are resolved from.
	TemplateDir string `mapstructure:"template_dir" json:"template_dir"`
	// EmailTemplate is the template used when a channel config names none.
	EmailTemplate string `mapstructure:"email_template" json:"email_template"`

	SMTP SMTPConfig `mapstructure:"smtp" json:"smtp"`
}

// SMTPConfig configures the mail transport shared by the email channels.
type SMTPConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
	// OAuth2File is the credentials artifact used for XOAUTH2.
	OAuth2File string `mapstructure:"oauth2_file" json:"oauth2_file"`
	// Username/Password enable PLAIN auth when no OAuth2 file is set.
	Username string        `mapstructure:"username" json:"username"`
	Password string        `mapstructure:"password" json:"password"`
	Timeout  time.Duration `mapstructure:"timeout"  json:"timeout"`
}

// DedupConfig controls repeat-notification suppression.
type DedupConfig struct {
	// Driver is "file" (default), "sqlite", "mysql" or "memory".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the JSON state file used by the file driver.
	Path string `mapstructure:"path" json:"path"`
	// MaxSame is how often an unchanged fact may be sent per window.
	MaxSame int `mapstructure:"max_same" json:"max_same"`
	// Window is the inactivity period after which counters reset.
	Window time.Duration `mapstructure:"window" json:"window"`
}

// DatabaseConfig is used by the sqlite and mysql dedup drivers.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// WatchConfig controls the long-running watch loop.
type WatchConfig struct {
	// Schedule is a robfig/cron expression, e.g. "@every 10m".
	Schedule string `mapstructure:"schedule" json:"schedule"`
}
