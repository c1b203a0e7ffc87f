package reportship

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/reportship/internal/adapters/chart"
	"github.com/bft-labs/reportship/internal/adapters/fs"
	"github.com/bft-labs/reportship/internal/adapters/smtp"
	"github.com/bft-labs/reportship/internal/app"
	"github.com/bft-labs/reportship/internal/cleaner"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/loader"
	"github.com/bft-labs/reportship/pkg/log"
)

// Reportship runs the report pipeline once a day and can be embedded in
// other applications. Use New to create an instance, then Start.
type Reportship struct {
	config    Config
	lifecycle *app.Lifecycle
	scheduler *app.Scheduler
	logger    Logger
	plugins   []Plugin

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates an instance in StateStopped. Returns an error wrapping
// ErrInvalidConfig if cfg is invalid.
func New(cfg Config, opts ...Option) (*Reportship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	at, err := app.ParseClockTime(cfg.ScheduleTime)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if o.mailSender == nil {
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("%w: smtp host is required", domain.ErrInvalidConfig)
		}
		o.mailSender = smtp.NewSender(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	}
	if o.chartBackend == nil {
		o.chartBackend = chart.NewBackend(0, 0)
	}
	if o.store == nil {
		o.store = fs.NewArtifactDir(cfg.OutputDir)
	}
	if o.runLog == nil {
		o.runLog = fs.NewRunLogFile(cfg.RunLogPath)
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	emitter := &eventEmitter{handler: o.eventHandler}

	pipeline := app.NewPipeline(app.PipelineConfig{
		Source:             cfg.Source,
		LoadOptions:        loader.Options{Delimiter: cfg.Delimiter, Sheet: cfg.Sheet},
		Clean:              cleaner.Options{Categorical: cfg.Categorical},
		Aggregate:          cfg.Aggregate,
		Render:             cfg.Render,
		AllowPartialRender: cfg.AllowPartialRender,
		Recipients:         cfg.Recipients,
		Subject:            cfg.Subject,
		Body:               cfg.Body,
	}, app.PipelineDeps{
		Charts: o.chartBackend,
		Mail:   o.mailSender,
		From:   cfg.SMTP.From,
		Store:  o.store,
		RunLog: o.runLog,
		Logger: logger,
		Clock:  o.clock,
	})

	scheduler := app.NewScheduler(app.SchedulerConfig{
		At:           at,
		PollInterval: cfg.PollInterval,
		Clock:        o.clock,
	}, pipeline, logger, emitter)

	return &Reportship{
		config:    cfg,
		lifecycle: app.NewLifecycle(logger, emitter),
		scheduler: scheduler,
		logger:    logger,
		plugins:   o.plugins,
	}, nil
}

// Start initializes plugins and starts the scheduler loop in the background.
// Returns ErrAlreadyRunning if the instance is already started.
func (r *Reportship) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		Source:     r.config.Source,
		OutputDir:  r.config.OutputDir,
		Logger:     r.logger,
		Controller: r,
	}
	for i, p := range r.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			r.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			for j := i - 1; j >= 0; j-- {
				_ = r.plugins[j].Shutdown(context.Background())
			}
			cancel()
			_ = r.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		r.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	r.lifecycle.Go(func() {
		if err := r.lifecycle.TransitionTo(app.StateRunning, "scheduler loop started"); err != nil {
			r.logger.Error("failed to transition to running", log.Err(err))
			return
		}
		err := r.scheduler.Loop(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("scheduler loop failed", log.Err(err))
			_ = r.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})
	return nil
}

// Stop cancels the scheduler loop, waits up to ShutdownTimeout for an
// in-flight run, and shuts plugins down. Returns ErrNotRunning when not started.
func (r *Reportship) Stop() error {
	r.mu.Lock()
	if !r.lifecycle.CanStop() {
		r.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := r.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	err := r.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	for i := len(r.plugins) - 1; i >= 0; i-- {
		p := r.plugins[i]
		if shutdownErr := p.Shutdown(context.Background()); shutdownErr != nil {
			r.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(shutdownErr))
		}
	}

	if err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state. Safe for concurrent use.
func (r *Reportship) Status() State {
	return convertState(r.lifecycle.State())
}

// TriggerNow runs the pipeline immediately and returns its record. It works
// whether or not the scheduler loop is started, and returns ErrAlreadyRunning
// while another run is in progress.
func (r *Reportship) TriggerNow(ctx context.Context) (RunRecord, error) {
	return r.scheduler.TriggerNow(ctx)
}

// SetScheduleTime changes the daily run time ("HH:MM").
func (r *Reportship) SetScheduleTime(hhmm string) error {
	at, err := app.ParseClockTime(hhmm)
	if err != nil {
		return err
	}
	r.scheduler.SetScheduleTime(at)
	return nil
}

// NextRun returns when the next scheduled run is due.
func (r *Reportship) NextRun() time.Time {
	return r.scheduler.NextRun()
}

// LastRun returns the most recent finished run, if any.
func (r *Reportship) LastRun() (RunRecord, bool) {
	return r.scheduler.LastRun()
}

// eventEmitter adapts EventHandler to the internal emitter interfaces.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitter) OnRunState(previous, current app.RunState) {}

func (e *eventEmitter) OnRunComplete(record domain.RunRecord) {
	if e.handler == nil {
		return
	}
	e.handler.OnRunComplete(RunCompleteEvent{Record: record})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
