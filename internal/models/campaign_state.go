package models

import "time"

// ControlState is the tagged in-flight control action. Only one value can be
// held at a time, which is what makes control actions mutually exclusive.
type ControlState string

const (
	ControlIdle     ControlState = "idle"
	ControlStarting ControlState = "starting"
	ControlPausing  ControlState = "pausing"
	ControlResuming ControlState = "resuming"
	ControlStopping ControlState = "stopping"
)

// ControlStateFor returns the in-flight state of an action
func ControlStateFor(action ControlAction) ControlState {
	switch action {
	case ActionStart:
		return ControlStarting
	case ActionPause:
		return ControlPausing
	case ActionResume:
		return ControlResuming
	case ActionStop:
		return ControlStopping
	default:
		return ControlIdle
	}
}

// ControlFlags is the boolean view of ControlState exposed to the dashboard
type ControlFlags struct {
	IsPausing  bool `json:"isPausing"`
	IsResuming bool `json:"isResuming"`
	IsStopping bool `json:"isStopping"`
}

// Flags derives the boolean flags
func (s ControlState) Flags() ControlFlags {
	return ControlFlags{
		IsPausing:  s == ControlPausing,
		IsResuming: s == ControlResuming,
		IsStopping: s == ControlStopping,
	}
}

// HealthSnapshot is the connectivity of the instances assigned to a campaign
type HealthSnapshot struct {
	ConnectedCount int               `json:"connectedCount"`
	TotalCount     int               `json:"totalCount"`
	PerInstance    map[string]string `json:"perInstanceStatus"`
	SampledAt      time.Time         `json:"sampledAt"`
}

// Connectivity classifies the snapshot
func (h HealthSnapshot) Connectivity() string {
	switch {
	case h.TotalCount == 0 || h.ConnectedCount == 0:
		return "none"
	case h.ConnectedCount < h.TotalCount:
		return "partial"
	default:
		return "full"
	}
}

// Disconnection tracks an auto-pause caused by losing every instance
type Disconnection struct {
	Active        bool   `json:"active"`
	Reason        string `json:"reason,omitempty"`
	ReadyToResume bool   `json:"readyToResume"`
}

// CampaignState is the reconciled view of one campaign read by the dashboard
type CampaignState struct {
	Campaign      Campaign          `json:"campaign"`
	Recipients    []RecipientStatus `json:"recipientStatuses"`
	Control       ControlState      `json:"control"`
	Flags         ControlFlags      `json:"flags"`
	Health        HealthSnapshot    `json:"health"`
	Disconnection Disconnection     `json:"disconnection"`
	HealthMessage string            `json:"healthMessage,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	Version       uint64            `json:"version"`
}
