package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// startDateLayout is the day-first format used for start_date in the config file.
const startDateLayout = "02-01-2006"

// Config holds the application configuration
type Config struct {
	PortalURL       string     `yaml:"portal_url"`
	Username        string     `yaml:"username"`
	Password        string     `yaml:"password"`
	DayMeterID      string     `yaml:"day_meter_id"`
	NightMeterID    string     `yaml:"night_meter_id"`
	RawDownloadDir  string     `yaml:"raw_download_dir"`
	WorkDir         string     `yaml:"work_dir"`
	WindowStorePath string     `yaml:"window_store_path,omitempty"`
	StartDate       string     `yaml:"start_date,omitempty"` // dd-mm-yyyy, first day ever fetched
	Headless        *bool      `yaml:"headless,omitempty"`
	MQTT            MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig holds the broker settings for publishing daily totals
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g., "homeassistant.local:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Contains the portal password
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

func (c *Config) validate() error {
	switch {
	case c.Username == "" || c.Password == "":
		return fmt.Errorf("username and password are required")
	case c.DayMeterID == "" || c.NightMeterID == "":
		return fmt.Errorf("day_meter_id and night_meter_id are required")
	case c.RawDownloadDir == "" || c.WorkDir == "":
		return fmt.Errorf("raw_download_dir and work_dir are required")
	}

	if c.StartDate != "" {
		if _, err := time.Parse(startDateLayout, c.StartDate); err != nil {
			return fmt.Errorf("parsing start_date %q (want dd-mm-yyyy): %w", c.StartDate, err)
		}
	}

	return nil
}

// GetStartDate returns the configured first day to fetch, or a zero time
// when start_date is not set.
func (c *Config) GetStartDate() time.Time {
	if c.StartDate == "" {
		return time.Time{}
	}
	t, _ := time.Parse(startDateLayout, c.StartDate)
	return t
}

// GetWindowStorePath returns window_store_path with a local default
func (c *Config) GetWindowStorePath() string {
	if c.WindowStorePath == "" {
		return "window.yaml"
	}
	return c.WindowStorePath
}

// GetHeadless returns the headless setting, defaulting to true
func (c *Config) GetHeadless() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}
