package cliconfig

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/pkg/reportship"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ScheduleTime != "09:00" {
		t.Errorf("ScheduleTime = %v, want 09:00", cfg.ScheduleTime)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want 1m", cfg.PollInterval)
	}
	if cfg.Recipients.Strategy != StrategyColumn {
		t.Errorf("Strategy = %v, want %v", cfg.Recipients.Strategy, StrategyColumn)
	}
	if !cfg.AllowPartialRender {
		t.Error("AllowPartialRender should default to true")
	}
	if len(cfg.Render) == 0 {
		t.Error("default config should render something")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Source = "data.csv"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults with source", mutate: func(*Config) {}},
		{name: "missing source", mutate: func(c *Config) { c.Source = "" }, wantErr: true},
		{name: "bad schedule", mutate: func(c *Config) { c.ScheduleTime = "9:00" }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: true},
		{name: "static without addresses", mutate: func(c *Config) { c.Recipients.Strategy = StrategyStatic }, wantErr: true},
		{
			name: "static with addresses",
			mutate: func(c *Config) {
				c.Recipients = RecipientsConfig{Strategy: "Static", Addresses: []string{"a@b.co"}}
			},
		},
		{name: "file without address source", mutate: func(c *Config) { c.Recipients.Strategy = StrategyFile }, wantErr: true},
		{name: "unknown strategy", mutate: func(c *Config) { c.Recipients.Strategy = "carrier-pigeon" }, wantErr: true},
		{name: "no render entries", mutate: func(c *Config) { c.Render = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateDerivesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = "data.csv"
	cfg.OutputDir = "/srv/reports"
	cfg.SMTP.Username = "bot@example.com"

	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.RunLog != "/srv/reports/runs.jsonl" {
		t.Errorf("RunLog = %v, want /srv/reports/runs.jsonl", cfg.RunLog)
	}
	if cfg.SMTP.From != "bot@example.com" {
		t.Errorf("SMTP.From = %v, want username", cfg.SMTP.From)
	}
}

func TestConfig_MaskedHidesPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SMTP.Password = "hunter2"

	masked := cfg.Masked()
	if masked.SMTP.Password != "*****" {
		t.Errorf("masked password = %q", masked.SMTP.Password)
	}
	if cfg.SMTP.Password != "hunter2" {
		t.Error("Masked modified the receiver")
	}
}

func TestToReportshipConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = "data.csv"
	cfg.Aggregate.Fill = "missing"
	cfg.Aggregate.TotalName = "Total"
	cfg.Aggregate.SortTotal = true
	cfg.Recipients = RecipientsConfig{Strategy: StrategyStatic, Addresses: []string{"ops@example.com"}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	out, err := ToReportshipConfig(cfg)
	if err != nil {
		t.Fatalf("ToReportshipConfig() error: %v", err)
	}
	if out.Aggregate == nil || out.Aggregate.Fill.Mode != aggregate.FillMissing {
		t.Errorf("aggregate = %+v, want missing fill", out.Aggregate)
	}
	if out.Aggregate.Total == nil || !out.Aggregate.Total.Sort || out.Aggregate.Total.Measure != "PageValues" {
		t.Errorf("total = %+v", out.Aggregate.Total)
	}
	static, ok := out.Recipients.(reportship.StaticRecipients)
	if !ok || len(static.Addresses) != 1 {
		t.Errorf("recipients = %#v, want static list", out.Recipients)
	}
	if len(out.Render) != len(cfg.Render) {
		t.Errorf("render specs = %d, want %d", len(out.Render), len(cfg.Render))
	}
	if out.RunLogPath != cfg.RunLog {
		t.Errorf("RunLogPath = %v, want %v", out.RunLogPath, cfg.RunLog)
	}
}

func TestToReportshipConfig_Strategies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = "data.csv"

	out, err := ToReportshipConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Recipients.(reportship.RecipientsFromTable); !ok {
		t.Errorf("column strategy gave %#v", out.Recipients)
	}

	cfg.Recipients.Strategy = StrategyFile
	cfg.AddressSource = "people.xlsx"
	out, err = ToReportshipConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := out.Recipients.(reportship.RecipientsFromFile); !ok || f.Path != "people.xlsx" {
		t.Errorf("file strategy gave %#v", out.Recipients)
	}
}

func TestToReportshipConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown statistic", func(c *Config) { c.Aggregate.Statistics = []string{"median"} }, "median"},
		{"bad fill", func(c *Config) { c.Aggregate.Fill = "lots" }, "lots"},
		{"unknown render kind", func(c *Config) { c.Render = []RenderConfig{{Name: "x", Kind: "sankey"}} }, "sankey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Source = "data.csv"
			tt.mutate(&cfg)
			_, err := ToReportshipConfig(cfg)
			if !errors.Is(err, domain.ErrInvalidConfig) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ToReportshipConfig() error = %v, want ErrInvalidConfig mentioning %q", err, tt.want)
			}
		})
	}
}

func TestParseFill_Number(t *testing.T) {
	p, err := parseFill("-1.5")
	if err != nil {
		t.Fatal(err)
	}
	if p.Mode != aggregate.FillValue || p.Value != -1.5 {
		t.Errorf("parseFill(-1.5) = %+v", p)
	}
}
