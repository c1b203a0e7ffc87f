// Package configwatcher reloads the daily schedule time when the config file
// changes on disk. The rest of the configuration is read once at startup.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/reportship/internal/cliconfig"
	"github.com/bft-labs/reportship/pkg/log"
	"github.com/bft-labs/reportship/pkg/reportship"
)

// ErrNoPath is returned by Initialize when no config file is configured.
var ErrNoPath = errors.New("configwatcher: config path is required")

// Plugin watches one config file and applies schedule_time changes to the
// running instance.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	readSchedule  func(path string) (string, error)

	controller reportship.Controller
	logger     reportship.Logger
	current    string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch.
	Path string

	// DebounceDelay is how long to wait after the last change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// ReadSchedule extracts the "HH:MM" schedule time from the file.
	// Default: cliconfig.LoadScheduleTime
	ReadSchedule func(path string) (string, error)
}

// DefaultConfig returns a Config watching path with default settings.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
		ReadSchedule:  cliconfig.LoadScheduleTime,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.ReadSchedule == nil {
		cfg.ReadSchedule = cliconfig.LoadScheduleTime
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		readSchedule:  cfg.ReadSchedule,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize records the current schedule time and starts watching the
// file's directory. Editors often replace files by rename, so the directory
// is watched rather than the file itself.
func (p *Plugin) Initialize(ctx context.Context, cfg reportship.PluginConfig) error {
	if p.path == "" {
		return ErrNoPath
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	current, err := p.readSchedule(p.path)
	if err != nil {
		logger.Warn("config watcher: initial read failed", log.String("path", p.path), log.Err(err))
	}

	watchCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.controller = cfg.Controller
	p.logger = logger
	p.current = current
	p.cancel = cancel
	p.mu.Unlock()

	logger.Info("config watcher started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload reads the file and applies a changed schedule time. A file that
// fails to parse leaves the current schedule in place.
func (p *Plugin) reload() {
	hhmm, err := p.readSchedule(p.path)
	if err != nil {
		p.logger.Warn("config watcher: reload failed, keeping schedule", log.String("path", p.path), log.Err(err))
		return
	}

	p.mu.Lock()
	if hhmm == "" || hhmm == p.current {
		p.mu.Unlock()
		return
	}
	controller := p.controller
	p.mu.Unlock()

	if controller == nil {
		return
	}
	if err := controller.SetScheduleTime(hhmm); err != nil {
		p.logger.Warn("config watcher: rejected schedule time", log.String("schedule_time", hhmm), log.Err(err))
		return
	}

	p.mu.Lock()
	previous := p.current
	p.current = hhmm
	p.mu.Unlock()

	p.logger.Info("schedule time reloaded",
		log.String("previous", previous),
		log.String("schedule_time", hhmm))
}

var _ reportship.Plugin = (*Plugin)(nil)
