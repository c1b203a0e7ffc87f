package configwatcher

import "github.com/bft-labs/reportship/pkg/reportship"

// WithConfigWatcher returns a reportship Option that reloads schedule_time
// whenever the config file changes.
//
// Usage:
//
//	r, err := reportship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "reportship.toml",
//	        DebounceDelay: 200 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) reportship.Option {
	return reportship.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher watches path with default settings.
func WithDefaultConfigWatcher(path string) reportship.Option {
	return WithConfigWatcher(DefaultConfig(path))
}
