package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations and pointers for
// booleans so an absent key is distinguishable from false.
type FileConfig struct {
	Source             string           `toml:"source" yaml:"source"`
	Sheet              string           `toml:"sheet" yaml:"sheet"`
	AddressSource      string           `toml:"address_source" yaml:"address_source"`
	ScheduleTime       string           `toml:"schedule_time" yaml:"schedule_time"`
	PollInterval       string           `toml:"poll_interval" yaml:"poll_interval"`
	OutputDir          string           `toml:"output_dir" yaml:"output_dir"`
	RunLog             string           `toml:"run_log" yaml:"run_log"`
	Subject            string           `toml:"subject" yaml:"subject"`
	Body               string           `toml:"body" yaml:"body"`
	LogFile            string           `toml:"log_file" yaml:"log_file"`
	LogLevel           string           `toml:"log_level" yaml:"log_level"`
	AllowPartialRender *bool            `toml:"allow_partial_render" yaml:"allow_partial_render"`
	Once               *bool            `toml:"once" yaml:"once"`
	SMTP               SMTPConfig       `toml:"smtp" yaml:"smtp"`
	Recipients         RecipientsConfig `toml:"recipients" yaml:"recipients"`
	Clean              CleanConfig      `toml:"clean" yaml:"clean"`
	Aggregate          *AggregateConfig `toml:"aggregate" yaml:"aggregate"`
	Render             []RenderConfig   `toml:"render" yaml:"render"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// decoded as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// LoadScheduleTime returns the schedule_time set in the file at path, or ""
// when the file does not set one.
func LoadScheduleTime(path string) (string, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(fc.ScheduleTime), nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.reportship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".reportship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). The
// aggregate and render sections have no flags and replace the defaults
// wholesale when present.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.Source, &cfg.Source)
	s.setString("sheet", fc.Sheet, &cfg.Sheet)
	s.setString("address-source", fc.AddressSource, &cfg.AddressSource)
	s.setString("schedule-time", fc.ScheduleTime, &cfg.ScheduleTime)
	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("run-log", fc.RunLog, &cfg.RunLog)
	s.setString("subject", fc.Subject, &cfg.Subject)
	s.setString("body", fc.Body, &cfg.Body)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setBool("allow-partial-render", fc.AllowPartialRender, &cfg.AllowPartialRender)
	s.setBool("once", fc.Once, &cfg.Once)

	s.setString("smtp-host", fc.SMTP.Host, &cfg.SMTP.Host)
	s.setInt("smtp-port", fc.SMTP.Port, &cfg.SMTP.Port)
	s.setString("smtp-username", fc.SMTP.Username, &cfg.SMTP.Username)
	s.setString("smtp-password", fc.SMTP.Password, &cfg.SMTP.Password)
	s.setString("smtp-from", fc.SMTP.From, &cfg.SMTP.From)

	s.setString("strategy", fc.Recipients.Strategy, &cfg.Recipients.Strategy)
	s.setStrings("to", fc.Recipients.Addresses, &cfg.Recipients.Addresses)
	s.setStrings("categorical", fc.Clean.Categorical, &cfg.Clean.Categorical)

	if fc.Aggregate != nil {
		cfg.Aggregate = *fc.Aggregate
	}
	if len(fc.Render) > 0 {
		cfg.Render = append([]RenderConfig(nil), fc.Render...)
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
