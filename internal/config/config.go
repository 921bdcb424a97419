// Package config loads troopcal settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingConfig is returned when a value needed to log in is absent
var ErrMissingConfig = errors.New("missing required configuration")

const (
	DefaultSiteURL     = "https://www.troopwebhost.org/"
	DefaultListURL     = "https://www.troopwebhost.org/FormList.aspx?Menu_Item_ID=45936&Stack=1"
	DefaultOutputPath  = "troop_calendar.ics"
	DefaultUTCOffset   = "-05:00"
	DefaultDataDir     = "~/.troopcal"
	DefaultSchedule    = "0 */6 * * *"
	DefaultListen      = "127.0.0.1:8080"
	DefaultNavTimeout  = 20 * time.Second
	DefaultSettleDelay = 600 * time.Millisecond
	DefaultRetries     = 2
	DefaultWorkers     = 1
	DefaultDescLimit   = 2000
)

// Environment variables that override file values
const (
	EnvBase      = "TWH_BASE"
	EnvUsername  = "TWH_USERNAME"
	EnvPassword  = "TWH_PASSWORD"
	EnvOutput    = "TWH_OUTPUT"
	EnvUTCOffset = "TWH_UTC_OFFSET"
	EnvLogLevel  = "TWH_LOG_LEVEL"
)

// LoginConfig holds the CSS selectors of the portal's log-on form.
type LoginConfig struct {
	UsernameSelector string `yaml:"username_selector" json:"username_selector"`
	PasswordSelector string `yaml:"password_selector" json:"password_selector"`
	SubmitSelector   string `yaml:"submit_selector" json:"submit_selector"`
}

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the troop's own site root; <BaseURL>/Index.htm is the frameset.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// SiteURL is the host relative detail links resolve against.
	SiteURL string `yaml:"site_url" json:"site_url"`

	// ListURL is the events listing page.
	ListURL string `yaml:"list_url" json:"list_url"`

	// FormID keeps only detail links with this Form_ID. Empty keeps all.
	FormID string `yaml:"form_id" json:"form_id"`

	Username string      `yaml:"username" json:"username"`
	Password string      `yaml:"password" json:"-"`
	Login    LoginConfig `yaml:"login" json:"login"`

	OutputPath string `yaml:"output_path" json:"output_path"`

	// UTCOffset is the fixed offset applied to every local time, e.g. "-05:00".
	UTCOffset string `yaml:"utc_offset" json:"utc_offset"`

	DescriptionLimit int `yaml:"description_limit" json:"description_limit"`

	// AllDayDefault turns pages without a time into all-day events.
	AllDayDefault *bool `yaml:"all_day_default,omitempty" json:"all_day_default,omitempty"`

	Workers     int           `yaml:"workers" json:"workers"`
	Retries     int           `yaml:"retries" json:"retries"`
	NavTimeout  time.Duration `yaml:"nav_timeout" json:"nav_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`

	// Headless runs Chromium without a window. Defaults to true.
	Headless *bool `yaml:"headless,omitempty" json:"headless,omitempty"`

	// DumpDir, when set, receives a copy of every fetched page.
	DumpDir string `yaml:"dump_dir" json:"dump_dir"`

	// DataDir holds the run history database.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// Schedule is a cron expression used by "troopcal serve".
	Schedule string `yaml:"schedule" json:"schedule"`
	Listen   string `yaml:"listen" json:"listen"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	PrettyLog bool   `yaml:"pretty_log" json:"pretty_log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{Retries: DefaultRetries}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled files still behave correctly.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	if c.ListURL == "" {
		c.ListURL = DefaultListURL
	}
	if c.Login.UsernameSelector == "" {
		c.Login.UsernameSelector = `input[type="text"]`
	}
	if c.Login.PasswordSelector == "" {
		c.Login.PasswordSelector = `input[type="password"]`
	}
	if c.Login.SubmitSelector == "" {
		c.Login.SubmitSelector = `input[type="submit"]`
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.UTCOffset == "" {
		c.UTCOffset = DefaultUTCOffset
	}
	if c.DescriptionLimit <= 0 {
		c.DescriptionLimit = DefaultDescLimit
	}
	if c.AllDayDefault == nil {
		c.AllDayDefault = boolPtr(true)
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = DefaultNavTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.Headless == nil {
		c.Headless = boolPtr(true)
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads the YAML file at path, applies environment overrides and
// normalizes the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{Retries: DefaultRetries}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides fields from TWH_* variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvBase, &c.BaseURL)
	set(EnvUsername, &c.Username)
	set(EnvPassword, &c.Password)
	set(EnvOutput, &c.OutputPath)
	set(EnvUTCOffset, &c.UTCOffset)
	set(EnvLogLevel, &c.LogLevel)
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if _, err := ParseOffset(c.UTCOffset); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.DescriptionLimit < 1 {
		return fmt.Errorf("description_limit must be positive, got %d", c.DescriptionLimit)
	}
	return nil
}

// CheckCredentials reports ErrMissingConfig unless the base URL, username
// and password are all set. It runs before any browser is started.
func (c *Config) CheckCredentials() error {
	missing := make([]string, 0, 3)
	if c.BaseURL == "" {
		missing = append(missing, "base_url ("+EnvBase+")")
	}
	if c.Username == "" {
		missing = append(missing, "username ("+EnvUsername+")")
	}
	if c.Password == "" {
		missing = append(missing, "password ("+EnvPassword+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Location returns the fixed zone named by UTCOffset
func (c *Config) Location() (*time.Location, error) {
	return ParseOffset(c.UTCOffset)
}

// IsHeadless reports whether Chromium should run without a window
func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// IsAllDayDefault reports whether pages without a time become all-day events
func (c *Config) IsAllDayDefault() bool {
	return c.AllDayDefault == nil || *c.AllDayDefault
}

var offsetPattern = regexp.MustCompile(`^([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseOffset turns "-05:00", "+0530", "-5" or "Z" into a fixed zone. The
// zone carries no DST rules.
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "Z" || strings.EqualFold(s, "UTC") {
		return time.UTC, nil
	}

	m := offsetPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid utc_offset %q", s)
	}
	hours, _ := strconv.Atoi(m[2])
	mins := 0
	if m[3] != "" {
		mins, _ = strconv.Atoi(m[3])
	}
	if hours > 14 || mins > 59 {
		return nil, fmt.Errorf("invalid utc_offset %q", s)
	}

	secs := hours*3600 + mins*60
	if m[1] == "-" {
		secs = -secs
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", m[1], hours, mins), secs), nil
}

func boolPtr(b bool) *bool { return &b }
