package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/reportship/internal/cliconfig"
	"github.com/bft-labs/reportship/pkg/log"
	"github.com/bft-labs/reportship/pkg/reportship"
	"github.com/bft-labs/reportship/plugins/configwatcher"
)

const helpDescription = `
Build the daily online shoppers report and mail it out.

Every day at the configured time reportship loads the source table, cleans it,
computes the pivot, renders the exports and charts into the output directory,
and sends them to the resolved recipients. Each run is appended to a JSON run log.

Configure via file (TOML or YAML), REPORTSHIP_* environment variables, or flags.
The SMTP password is best supplied through REPORTSHIP_SMTP_PASSWORD.
`

var exampleUsage = strings.TrimSpace(`
  reportship --source data/online_shoppers_intention.csv --schedule-time 09:00
  reportship --config $HOME/.reportship/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	bootLog := log.NewZerologAdapter()

	root := &cobra.Command{
		Use:           "reportship",
		Short:         "Build and mail a daily report on a schedule",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			watchFile := ""
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				watchFile = cfgFile
			}

			// Environment overrides the file; flags override both via the changed map.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closer, err := log.New(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer closer.Close()

			logger.Info("configuration", log.Any("config", cfg.Masked()))

			libCfg, err := cliconfig.ToReportshipConfig(cfg)
			if err != nil {
				return err
			}

			opts := []reportship.Option{reportship.WithLogger(logger)}
			if watchFile != "" && !cfg.Once {
				opts = append(opts, configwatcher.WithDefaultConfigWatcher(watchFile))
			}

			r, err := reportship.New(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create reportship: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Once {
				return runOnce(ctx, r)
			}
			return serve(ctx, r, logger)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.reportship/config.toml)")
	f.StringVar(&cfg.Source, "source", cfg.Source, "CSV or xlsx file to report on")
	f.StringVar(&cfg.Sheet, "sheet", cfg.Sheet, "workbook sheet to read (default: first sheet)")
	f.StringVar(&cfg.AddressSource, "address-source", cfg.AddressSource, "CSV or xlsx address list for the file strategy")
	f.StringVar(&cfg.ScheduleTime, "schedule-time", cfg.ScheduleTime, "daily run time, HH:MM in local time")
	f.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "how often the scheduler checks the clock")
	f.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for report artifacts")
	f.StringVar(&cfg.RunLog, "run-log", cfg.RunLog, "JSON lines run log (default: <output-dir>/runs.jsonl)")
	f.StringVar(&cfg.Subject, "subject", cfg.Subject, "mail subject; {date} is replaced with the run date")
	f.StringVar(&cfg.Body, "body", cfg.Body, "mail body; {date} is replaced with the run date")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "append log entries to this file as JSON")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.BoolVar(&cfg.AllowPartialRender, "allow-partial-render", cfg.AllowPartialRender, "deliver even when some render specs fail")
	f.BoolVar(&cfg.Once, "once", cfg.Once, "run the pipeline now and exit with its status")

	f.StringVar(&cfg.SMTP.Host, "smtp-host", cfg.SMTP.Host, "SMTP relay host")
	f.IntVar(&cfg.SMTP.Port, "smtp-port", cfg.SMTP.Port, "SMTP relay port (465 uses implicit TLS)")
	f.StringVar(&cfg.SMTP.Username, "smtp-username", cfg.SMTP.Username, "SMTP username")
	f.StringVar(&cfg.SMTP.From, "smtp-from", cfg.SMTP.From, "sender address (default: smtp username)")

	f.StringVar(&cfg.Recipients.Strategy, "strategy", cfg.Recipients.Strategy, "recipient strategy: static, column or file")
	f.StringSliceVar(&cfg.Recipients.Addresses, "to", cfg.Recipients.Addresses, "recipient addresses for the static strategy")
	f.StringSliceVar(&cfg.Clean.Categorical, "categorical", cfg.Clean.Categorical, "columns normalized to text before aggregation")

	if err := root.Execute(); err != nil {
		bootLog.Error("reportship", log.Err(err))
		os.Exit(1)
	}
}

// runOnce triggers a single run and reports failure through the exit status.
func runOnce(ctx context.Context, r *reportship.Reportship) error {
	rec, err := r.TriggerNow(ctx)
	if err != nil {
		return err
	}
	if !rec.Succeeded() {
		return fmt.Errorf("run %s failed at %s: %s", rec.ID, rec.Stage, rec.Error)
	}
	return nil
}

// serve runs the scheduler until a signal arrives or the instance crashes.
func serve(ctx context.Context, r *reportship.Reportship, logger log.Logger) error {
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start reportship: %w", err)
	}
	logger.Info("scheduler started", log.Time("next_run", r.NextRun()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if r.Status() == reportship.StateCrashed {
					return errors.New("reportship crashed")
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stopping")
		if err := r.Stop(); err != nil && !errors.Is(err, reportship.ErrNotRunning) {
			return fmt.Errorf("stop reportship: %w", err)
		}
		return nil
	})
	return g.Wait()
}
