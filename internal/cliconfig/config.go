package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/reportship/internal/app"
	"github.com/bft-labs/reportship/internal/domain"
)

// Recipient strategies accepted in recipients.strategy.
const (
	StrategyStatic = "static"
	StrategyColumn = "column"
	StrategyFile   = "file"
)

// SMTPConfig is the [smtp] section.
type SMTPConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	From     string `toml:"from" yaml:"from"`
}

// RecipientsConfig is the [recipients] section.
type RecipientsConfig struct {
	Strategy  string   `toml:"strategy" yaml:"strategy"`
	Addresses []string `toml:"addresses" yaml:"addresses"`
}

// CleanConfig is the [clean] section.
type CleanConfig struct {
	Categorical []string `toml:"categorical" yaml:"categorical"`
}

// AggregateConfig is the [aggregate] section. Fill is "zero" (default),
// "missing" or a number.
type AggregateConfig struct {
	GroupKeys  []string `toml:"group_keys" yaml:"group_keys"`
	SplitKey   string   `toml:"split_key" yaml:"split_key"`
	Measures   []string `toml:"measures" yaml:"measures"`
	Statistics []string `toml:"statistics" yaml:"statistics"`
	Fill       string   `toml:"fill" yaml:"fill"`
	Cartesian  bool     `toml:"cartesian" yaml:"cartesian"`
	Margins    bool     `toml:"margins" yaml:"margins"`
	TotalName  string   `toml:"total_name" yaml:"total_name"`
	SortTotal  bool     `toml:"sort_total" yaml:"sort_total"`
}

// RenderConfig is one [[render]] entry.
type RenderConfig struct {
	Name    string   `toml:"name" yaml:"name"`
	Kind    string   `toml:"kind" yaml:"kind"`
	Columns []string `toml:"columns" yaml:"columns"`
	Title   string   `toml:"title" yaml:"title"`
	Source  string   `toml:"source" yaml:"source"`
}

// Config holds CLI configuration for reportship.
type Config struct {
	Source        string
	Sheet         string
	AddressSource string

	ScheduleTime string
	PollInterval time.Duration

	OutputDir string
	RunLog    string

	Subject string
	Body    string

	LogFile  string
	LogLevel string

	AllowPartialRender bool
	Once               bool

	SMTP       SMTPConfig
	Recipients RecipientsConfig
	Clean      CleanConfig
	Aggregate  AggregateConfig
	Render     []RenderConfig
}

// DefaultConfig returns a Config with default values. The default report
// is the mean page value per visitor type, split by weekend.
func DefaultConfig() Config {
	return Config{
		ScheduleTime:       "09:00",
		PollInterval:       time.Minute,
		OutputDir:          "reports",
		LogLevel:           "info",
		AllowPartialRender: true,
		SMTP:               SMTPConfig{Port: 587},
		Recipients:         RecipientsConfig{Strategy: StrategyColumn},
		Clean:              CleanConfig{Categorical: []string{"Weekend", "Revenue"}},
		Aggregate: AggregateConfig{
			GroupKeys:  []string{"VisitorType"},
			SplitKey:   "Weekend",
			Measures:   []string{"PageValues"},
			Statistics: []string{"mean"},
			Fill:       "zero",
			Cartesian:  true,
		},
		Render: []RenderConfig{
			{Name: "pivot_table", Kind: "csv"},
			{Name: "report", Kind: "xlsx"},
			{Name: "revenue_distribution", Kind: "pie", Columns: []string{"Revenue"}, Title: "Revenue distribution"},
			{Name: "correlation", Kind: "heatmap", Title: "Correlation"},
		},
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: source is required", domain.ErrInvalidConfig)
	}
	if _, err := app.ParseClockTime(c.ScheduleTime); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}

	c.Recipients.Strategy = strings.ToLower(strings.TrimSpace(c.Recipients.Strategy))
	switch c.Recipients.Strategy {
	case StrategyStatic:
		if len(c.Recipients.Addresses) == 0 {
			return fmt.Errorf("%w: static strategy needs recipients.addresses", domain.ErrInvalidConfig)
		}
	case StrategyColumn:
	case StrategyFile:
		if c.AddressSource == "" {
			return fmt.Errorf("%w: file strategy needs address_source", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown recipient strategy %q", domain.ErrInvalidConfig, c.Recipients.Strategy)
	}

	if len(c.Render) == 0 {
		return fmt.Errorf("%w: at least one [[render]] entry is required", domain.ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		c.OutputDir = "reports"
	}
	if c.RunLog == "" {
		c.RunLog = filepath.Join(c.OutputDir, "runs.jsonl")
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.SMTP.Password != "" {
		c.SMTP.Password = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits a comma-separated value.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
