// Package config loads agendacal configuration.
//
// Configuration comes from config.yaml in the state directory, with
// AGENDACAL_* environment variables overriding individual keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CalDAV holds remote calendar credentials.
type CalDAV struct {
	Endpoint     string `mapstructure:"endpoint"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	CalendarPath string `mapstructure:"calendar_path"`
}

// Config is the resolved agendacal configuration.
type Config struct {
	// StateDir holds the mapping database, grant file, and logs.
	StateDir string `mapstructure:"state_dir"`

	// Backend selects the calendar store: icsdir, caldav, or memcal.
	Backend string `mapstructure:"backend"`

	// ICSDir is the event directory for the icsdir backend.
	ICSDir string `mapstructure:"ics_dir"`

	// CalDAV configures the caldav backend.
	CalDAV CalDAV `mapstructure:"caldav"`

	// CalendarID pins the sync target calendar; empty resolves the
	// primary device calendar.
	CalendarID string `mapstructure:"calendar_id"`

	// ToleranceMinutes is the content-match window.
	ToleranceMinutes int `mapstructure:"tolerance_minutes"`

	// ReconcileSchedule is a cron expression for periodic passes.
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`

	// PushURL is the WebSocket endpoint for push payloads.
	PushURL string `mapstructure:"push_url"`

	// AgendaDir is the directory of engaged intent files.
	AgendaDir string `mapstructure:"agenda_dir"`

	// LogFile is the daemon's rotating log file; empty logs to stderr only.
	LogFile string `mapstructure:"log_file"`
}

// Tolerance returns the content-match window as a duration.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMinutes) * time.Minute
}

// DatabasePath is the mapping database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StateDir, "mappings.db")
}

// GrantPath is the permission grant file location.
func (c *Config) GrantPath() string {
	return filepath.Join(c.StateDir, "grants.json")
}

// DefaultStateDir returns ~/.agendacal, falling back to the working
// directory when the home directory is unknown.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agendacal"
	}
	return filepath.Join(home, ".agendacal")
}

// Load reads configuration from the state dir (or an explicit file)
// and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("state_dir", DefaultStateDir())
	v.SetDefault("backend", "icsdir")
	v.SetDefault("tolerance_minutes", 15)
	v.SetDefault("reconcile_schedule", "@every 30m")

	v.SetEnvPrefix("AGENDACAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultStateDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine: defaults + env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ICSDir == "" {
		cfg.ICSDir = filepath.Join(cfg.StateDir, "events")
	}
	if cfg.AgendaDir == "" {
		cfg.AgendaDir = filepath.Join(cfg.StateDir, "agenda")
	}
	return &cfg, nil
}
