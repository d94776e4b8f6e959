package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".seatwatch"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".seatwatch/seatwatch.db"
	DefaultDedupFile  = ".seatwatch/mail_counts.json"

	// EnvPrefix namespaces environment overrides, e.g. SEATWATCH_NOTIFY_ENABLE.
	EnvPrefix = "SEATWATCH"
)

// Load reads the config file and returns a populated Config. A missing file
// is not an error; defaults and environment overrides still apply.
// The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	if configPath == "" {
		p, err := ConfigPath("")
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("scraper.destinations_file", filepath.Join(home, DefaultConfigDir, "destinations.json"))
	v.SetDefault("scraper.records_file", filepath.Join(home, DefaultConfigDir, "data", "records.json"))
	v.SetDefault("scraper.destination_marker", "course_id=")

	v.SetDefault("notify.enable", false)
	v.SetDefault("notify.streams", "Email")
	v.SetDefault("notify.config_file", filepath.Join(home, DefaultConfigDir, "notifications.json"))
	v.SetDefault("notify.template_dir", "templates/notifications")
	v.SetDefault("notify.email_template", "email.html")
	v.SetDefault("notify.smtp.host", "smtp.gmail.com")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.oauth2_file", "oauth2_creds.json")
	v.SetDefault("notify.smtp.timeout", 30*time.Second)

	v.SetDefault("dedup.driver", "file")
	v.SetDefault("dedup.path", filepath.Join(home, DefaultDedupFile))
	v.SetDefault("dedup.max_same", 3)
	v.SetDefault("dedup.window", time.Hour)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("watch.schedule", "@every 10m")
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Scraper.DestinationsFile = expandHome(cfg.Scraper.DestinationsFile, home)
	cfg.Scraper.RecordsFile = expandHome(cfg.Scraper.RecordsFile, home)
	cfg.Notify.ConfigFile = expandHome(cfg.Notify.ConfigFile, home)
	cfg.Notify.TemplateDir = expandHome(cfg.Notify.TemplateDir, home)
	cfg.Notify.SMTP.OAuth2File = expandHome(cfg.Notify.SMTP.OAuth2File, home)
	cfg.Dedup.Path = expandHome(cfg.Dedup.Path, home)
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
