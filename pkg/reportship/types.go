package reportship

import (
	"context"

	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/ports"
	"github.com/bft-labs/reportship/internal/recipients"
	"github.com/bft-labs/reportship/internal/render"
	"github.com/bft-labs/reportship/pkg/log"
)

// Re-exported pipeline types so embedders can configure a run.
type (
	AggregateRequest = aggregate.Request
	Statistic        = aggregate.Statistic
	FillPolicy       = aggregate.FillPolicy
	Total            = aggregate.Total

	RenderSpec = render.Spec
	RenderKind = render.Kind

	RecipientSource     = recipients.Source
	StaticRecipients    = recipients.Static
	RecipientsFromTable = recipients.FromTableColumn
	RecipientsFromFile  = recipients.FromAddressFile

	RunRecord = domain.RunRecord
	RunStatus = domain.RunStatus
	Artifact  = domain.Artifact
	Chart     = domain.Chart

	MailSender    = ports.MailSender
	Message       = ports.Message
	ChartBackend  = ports.ChartBackend
	ArtifactStore = ports.ArtifactStore
	RunLog        = ports.RunLog

	Logger   = log.Logger
	LogField = log.Field
)

// Errors returned by the public API. Use errors.Is to match them.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNotFound        = domain.ErrNotFound
	ErrDelivery        = domain.ErrDelivery
)

// State is the lifecycle state of a Reportship instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// IsRunning reports whether the scheduler loop is active.
func (s State) IsRunning() bool { return s == StateRunning }

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// RunCompleteEvent carries a finished run.
type RunCompleteEvent struct {
	Record RunRecord
}

// EventHandler receives lifecycle and run notifications. Calls are made
// synchronously from the goroutine that caused them.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnRunComplete(event RunCompleteEvent)
}

// BaseEventHandler implements EventHandler with no-ops; embed it to override
// only what you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnRunComplete(RunCompleteEvent) {}

// Controller is the part of a running instance a plugin may drive.
type Controller interface {
	SetScheduleTime(hhmm string) error
	TriggerNow(ctx context.Context) (RunRecord, error)
}

// PluginConfig is handed to every plugin on Initialize.
type PluginConfig struct {
	Source     string
	OutputDir  string
	Logger     Logger
	Controller Controller
}

// Plugin extends an instance with optional behavior. Plugins are initialized
// in registration order on Start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}
