package models

import "encoding/json"

// Push event types emitted by the platform
const (
	EventProgress  = "progress"
	EventPaused    = "paused"
	EventResumed   = "resumed"
	EventStopped   = "stopped"
	EventCompleted = "completed"
)

// PushEvent is the envelope of every message on the push-event stream
type PushEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PushEventHeader is decoded first to route an event to its campaign
type PushEventHeader struct {
	CampaignID string `json:"campaignId"`
}

// ProgressPayload is the data of a "progress" event. Counter fields are
// pointers so a missing field can be told apart from zero.
type ProgressPayload struct {
	CampaignID            string         `json:"campaignId"`
	Status                CampaignStatus `json:"status"`
	Sent                  *int           `json:"sent"`
	Failed                *int           `json:"failed"`
	NotExist              *int           `json:"notExist"`
	Total                 *int           `json:"total"`
	LastRecipient         string         `json:"lastRecipient,omitempty"`
	LastMessageStatus     string         `json:"lastMessageStatus,omitempty"`
	InstancesDisconnected bool           `json:"instancesDisconnected,omitempty"`
}

// LifecyclePayload is the data of "paused" and "resumed" events
type LifecyclePayload struct {
	CampaignID            string `json:"campaignId"`
	InstancesDisconnected bool   `json:"instancesDisconnected,omitempty"`
}

// TerminalPayload is the data of "stopped" and "completed" events
type TerminalPayload struct {
	CampaignID string `json:"campaignId"`
	Sent       *int   `json:"sent"`
	Failed     *int   `json:"failed"`
	NotExist   *int   `json:"notExist"`
}
