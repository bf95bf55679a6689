package campaignsync

import (
	"github.com/onegreenvn/campaign-monitor/internal/models"
)

// Event is an input to Store.Apply
type Event interface {
	eventName() string
}

// ControlRequested proposes an optimistic transition for a user action
type ControlRequested struct {
	Action models.ControlAction
}

// ControlConfirmed commits a proposal once the grace window has elapsed
type ControlConfirmed struct {
	Action models.ControlAction
}

// ControlFailed aborts a proposal and reverts to the pre-command status
type ControlFailed struct {
	Action models.ControlAction
	Err    error
}

// ServerProgress is a throttled progress push event
type ServerProgress struct {
	Status                models.CampaignStatus
	Counters              models.Counters
	LastRecipient         string
	LastMessageStatus     models.RecipientStatus
	InstancesDisconnected bool
}

// ServerPaused is an authoritative paused push event
type ServerPaused struct {
	InstancesDisconnected bool
}

// ServerResumed is an authoritative resumed push event
type ServerResumed struct{}

// ServerStopped is an authoritative stopped push event
type ServerStopped struct {
	Counters models.Counters
}

// ServerCompleted is an authoritative completed push event
type ServerCompleted struct {
	Counters models.Counters
}

// HealthSample is one poll of instance connectivity
type HealthSample struct {
	Snapshot        models.HealthSnapshot
	AllDisconnected bool
	Reconnected     bool
	Message         string
}

// DetailLoaded (re)initializes the store from the campaign detail fetch
type DetailLoaded struct {
	Campaign models.Campaign
}

func (ControlRequested) eventName() string { return "control_requested" }
func (ControlConfirmed) eventName() string { return "control_confirmed" }
func (ControlFailed) eventName() string    { return "control_failed" }
func (ServerProgress) eventName() string   { return "server_progress" }
func (ServerPaused) eventName() string     { return "server_paused" }
func (ServerResumed) eventName() string    { return "server_resumed" }
func (ServerStopped) eventName() string    { return "server_stopped" }
func (ServerCompleted) eventName() string  { return "server_completed" }
func (HealthSample) eventName() string     { return "health_sample" }
func (DetailLoaded) eventName() string     { return "detail_loaded" }

// EffectKind names a side effect the caller of Apply must run
type EffectKind int

const (
	// EffectRefetch schedules one deferred authoritative detail fetch
	EffectRefetch EffectKind = iota + 1
	// EffectRemoteCommand fires a best-effort command without awaiting it
	EffectRemoteCommand
)

// Effect is a side effect produced by a transition
type Effect struct {
	Kind   EffectKind
	Action models.ControlAction
}

// Result is the outcome of Store.Apply
type Result struct {
	State   models.CampaignState
	Changed bool
	Effects []Effect
}
