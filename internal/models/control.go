package models

import "fmt"

// ControlAction is a user-issued campaign control command
type ControlAction string

const (
	ActionStart  ControlAction = "start"
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
	ActionStop   ControlAction = "stop"
)

// ParseControlAction validates a raw action name
func ParseControlAction(s string) (ControlAction, error) {
	switch a := ControlAction(s); a {
	case ActionStart, ActionPause, ActionResume, ActionStop:
		return a, nil
	default:
		return "", fmt.Errorf("unknown control action %q", s)
	}
}

// ControlRequest is the body of the remote control command
type ControlRequest struct {
	CampaignID string        `json:"campaignId"`
	Action     ControlAction `json:"action"`
}

// ControlResponse is the platform acknowledgment of a control command
type ControlResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

// ControlCommandRequest is the dashboard request to control a campaign
type ControlCommandRequest struct {
	Action string `json:"action" binding:"required,oneof=start pause resume stop" example:"pause"`
}
