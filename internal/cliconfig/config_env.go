package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (REPORTSHIP_*). It respects flags that have been explicitly set (changed
// map). REPORTSHIP_SMTP_PASSWORD is the intended way to supply the relay
// password. Returns an error if any variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", os.Getenv("REPORTSHIP_SOURCE"), &cfg.Source)
	s.setString("sheet", os.Getenv("REPORTSHIP_SHEET"), &cfg.Sheet)
	s.setString("address-source", os.Getenv("REPORTSHIP_ADDRESS_SOURCE"), &cfg.AddressSource)
	s.setString("schedule-time", os.Getenv("REPORTSHIP_SCHEDULE_TIME"), &cfg.ScheduleTime)
	s.setString("output-dir", os.Getenv("REPORTSHIP_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("run-log", os.Getenv("REPORTSHIP_RUN_LOG"), &cfg.RunLog)
	s.setString("log-file", os.Getenv("REPORTSHIP_LOG_FILE"), &cfg.LogFile)
	s.setString("log-level", os.Getenv("REPORTSHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", os.Getenv("REPORTSHIP_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	s.setString("smtp-host", os.Getenv("REPORTSHIP_SMTP_HOST"), &cfg.SMTP.Host)
	if err := s.setIntFromString("smtp-port", os.Getenv("REPORTSHIP_SMTP_PORT"), &cfg.SMTP.Port); err != nil {
		return err
	}
	s.setString("smtp-username", os.Getenv("REPORTSHIP_SMTP_USERNAME"), &cfg.SMTP.Username)
	s.setString("smtp-password", os.Getenv("REPORTSHIP_SMTP_PASSWORD"), &cfg.SMTP.Password)
	s.setString("smtp-from", os.Getenv("REPORTSHIP_SMTP_FROM"), &cfg.SMTP.From)

	s.setString("strategy", os.Getenv("REPORTSHIP_RECIPIENT_STRATEGY"), &cfg.Recipients.Strategy)
	s.setListFromString("to", os.Getenv("REPORTSHIP_RECIPIENTS"), &cfg.Recipients.Addresses)

	s.setBoolFromString("allow-partial-render", os.Getenv("REPORTSHIP_ALLOW_PARTIAL_RENDER"), &cfg.AllowPartialRender)
	s.setBoolFromString("once", os.Getenv("REPORTSHIP_ONCE"), &cfg.Once)

	return nil
}
