package reportship

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bft-labs/reportship/internal/app"
	"github.com/bft-labs/reportship/internal/cleaner"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/recipients"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultScheduleTime = "09:00"
	DefaultOutputDir    = "reports"
	DefaultSubject      = "Daily Online Shoppers Report {date}"
	DefaultBody         = "Please find attached the daily report for {date}."
)

// SMTPConfig describes the mail relay and sender identity.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Config is everything one instance needs.
type Config struct {
	// Source is the CSV or xlsx file read on every run.
	Source    string
	Delimiter rune
	Sheet     string

	// Categorical columns are normalized to text before aggregation.
	Categorical []string

	Aggregate          *AggregateRequest
	Render             []RenderSpec
	AllowPartialRender bool

	Recipients RecipientSource
	Subject    string
	Body       string

	// ScheduleTime is the daily run time, "HH:MM" in local time.
	ScheduleTime string
	PollInterval time.Duration

	OutputDir  string
	RunLogPath string

	SMTP SMTPConfig
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ScheduleTime == "" {
		c.ScheduleTime = DefaultScheduleTime
	}
	if c.PollInterval == 0 {
		c.PollInterval = app.DefaultPollInterval
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.RunLogPath == "" {
		c.RunLogPath = filepath.Join(c.OutputDir, "runs.jsonl")
	}
	if c.Categorical == nil {
		c.Categorical = cleaner.DefaultOptions().Categorical
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Body == "" {
		c.Body = DefaultBody
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: source is required", domain.ErrInvalidConfig)
	}
	if _, err := app.ParseClockTime(c.ScheduleTime); err != nil {
		return err
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	switch r := c.Recipients.(type) {
	case nil:
		return fmt.Errorf("%w: recipient strategy is required", domain.ErrInvalidConfig)
	case recipients.Static:
		if len(r.Addresses) == 0 {
			return fmt.Errorf("%w: static recipients need at least one address", domain.ErrInvalidConfig)
		}
	case recipients.FromAddressFile:
		if r.Path == "" {
			return fmt.Errorf("%w: address file path is required", domain.ErrInvalidConfig)
		}
	}
	if len(c.Render) == 0 {
		return fmt.Errorf("%w: at least one render spec is required", domain.ErrInvalidConfig)
	}
	return nil
}
