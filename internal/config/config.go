// Package config provides YAML-based configuration loading for NagarSeva.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level NagarSeva configuration, loaded from config.yaml.
type Config struct {
	City      string          `yaml:"city"`
	DB        DBConfig        `yaml:"db"`
	Bot       BotConfig       `yaml:"bot"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Voice     VoiceConfig     `yaml:"voice"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Wards     WardsConfig     `yaml:"wards"`
}

// DBConfig holds connection settings for the MySQL database.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// BotConfig selects and configures the citizen messaging transport.
type BotConfig struct {
	Transport          string `yaml:"transport"` // "discord" or "mock"
	Token              string `yaml:"token"`
	SessionTTLMin      int    `yaml:"session_ttl_min"`    // inactivity threshold
	SweepIntervalMin   int    `yaml:"sweep_interval_min"` // expired-session sweep
	DefaultLanguage    string `yaml:"default_language"`   // prompt language before selection
	MaxPhotosPerReport int    `yaml:"max_photos_per_report"`
}

// DashboardConfig holds the HTTP server and live-link settings.
type DashboardConfig struct {
	Port            int    `yaml:"port"`
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLHours   int    `yaml:"token_ttl_hours"`
	PingIntervalSec int    `yaml:"ping_interval_sec"` // observer heartbeat cycle
}

// UploadsConfig controls media staging and permanent storage.
type UploadsConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	TempTTLMin int    `yaml:"temp_ttl_min"` // staged files older than this are swept
	SweepCron  string `yaml:"sweep_cron"`   // 5-field cron for the temp sweep
}

// GeocodeConfig configures the reverse-geocoding collaborator.
type GeocodeConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// VoiceConfig configures the speech-to-text collaborator.
type VoiceConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// AlertsConfig configures the operator alert channel.
type AlertsConfig struct {
	SlackToken   string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
	MinSeverity  string `yaml:"min_severity"` // lowest severity that triggers an alert
}

// WardsConfig describes the municipal ward layout.
type WardsConfig struct {
	Count    int            `yaml:"count"`
	Officers map[int]string `yaml:"officers"` // ward number -> officer name
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.City == "" {
		c.City = "rajkot"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" {
		c.DB.Database = "nagarseva_" + c.City
	}
	if c.Bot.Transport == "" {
		c.Bot.Transport = "discord"
	}
	if c.Bot.SessionTTLMin == 0 {
		c.Bot.SessionTTLMin = 30
	}
	if c.Bot.SweepIntervalMin == 0 {
		c.Bot.SweepIntervalMin = 10
	}
	if c.Bot.DefaultLanguage == "" {
		c.Bot.DefaultLanguage = "gu"
	}
	if c.Bot.MaxPhotosPerReport == 0 {
		c.Bot.MaxPhotosPerReport = 5
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Dashboard.TokenTTLHours == 0 {
		c.Dashboard.TokenTTLHours = 12
	}
	if c.Dashboard.PingIntervalSec == 0 {
		c.Dashboard.PingIntervalSec = 30
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.MaxSizeMB == 0 {
		c.Uploads.MaxSizeMB = 10
	}
	if c.Uploads.TempTTLMin == 0 {
		c.Uploads.TempTTLMin = 60
	}
	if c.Uploads.SweepCron == "" {
		c.Uploads.SweepCron = "0 * * * *"
	}
	if c.Geocode.TimeoutSec == 0 {
		c.Geocode.TimeoutSec = 5
	}
	if c.Voice.TimeoutSec == 0 {
		c.Voice.TimeoutSec = 15
	}
	if c.Alerts.MinSeverity == "" {
		c.Alerts.MinSeverity = "high"
	}
	if c.Wards.Count == 0 {
		c.Wards.Count = 23
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Bot.Transport != "discord" && c.Bot.Transport != "mock" {
		errs = append(errs, fmt.Sprintf("bot.transport %q is not supported", c.Bot.Transport))
	}
	switch c.Bot.DefaultLanguage {
	case "gu", "hi", "en":
	default:
		errs = append(errs, fmt.Sprintf("bot.default_language %q is not one of gu, hi, en", c.Bot.DefaultLanguage))
	}
	if c.Wards.Count < 1 {
		errs = append(errs, "wards.count must be at least 1")
	}
	for ward := range c.Wards.Officers {
		if ward < 1 || ward > c.Wards.Count {
			errs = append(errs, fmt.Sprintf("wards.officers: ward %d outside 1..%d", ward, c.Wards.Count))
		}
	}
	if c.Alerts.SlackToken != "" && c.Alerts.SlackChannel == "" {
		errs = append(errs, "alerts.slack_channel is required when alerts.slack_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// WardOfficer returns the configured officer name for a ward, or the generic
// placeholder the legacy roster used.
func (c *Config) WardOfficer(wardID int) string {
	if name, ok := c.Wards.Officers[wardID]; ok {
		return name
	}
	return fmt.Sprintf("Ward %d Officer", wardID)
}
