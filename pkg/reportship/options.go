package reportship

import "time"

// Option configures optional behavior of Reportship.
type Option func(*options)

// options holds the optional collaborators of a Reportship instance.
// Nil fields are replaced with the default adapters in New.
type options struct {
	logger       Logger
	mailSender   MailSender
	chartBackend ChartBackend
	store        ArtifactStore
	runLog       RunLog
	eventHandler EventHandler
	plugins      []Plugin
	clock        func() time.Time
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMailSender replaces the SMTP transport.
func WithMailSender(sender MailSender) Option {
	return func(o *options) {
		o.mailSender = sender
	}
}

// WithChartBackend replaces the PNG chart renderer.
func WithChartBackend(backend ChartBackend) Option {
	return func(o *options) {
		o.chartBackend = backend
	}
}

// WithArtifactStore replaces the output directory writer.
func WithArtifactStore(store ArtifactStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRunLog replaces the JSON lines run log.
func WithRunLog(runLog RunLog) Option {
	return func(o *options) {
		o.runLog = runLog
	}
}

// WithEventHandler sets a handler for lifecycle and run events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Reportship starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithClock overrides the wall clock used for scheduling and run records.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}
