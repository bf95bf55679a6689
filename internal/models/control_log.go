package models

import (
	"time"
)

// Control log outcomes
const (
	ControlOutcomeConfirmed = "confirmed"
	ControlOutcomeFailed    = "failed"
	ControlOutcomeTimeout   = "timeout"
	ControlOutcomeRejected  = "rejected"
)

// ControlLog is the journal entry of one dispatched control command
type ControlLog struct {
	ID            string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	CampaignID    string `json:"campaign_id" gorm:"type:varchar(255);not null;index"`
	CorrelationID string `json:"correlation_id" gorm:"type:uuid;not null;index"`

	Action     string `json:"action" gorm:"type:varchar(20);not null;index"`   // start, pause, resume, stop
	Outcome    string `json:"outcome" gorm:"type:varchar(20);not null;index"`  // confirmed, failed, timeout, rejected
	FromStatus string `json:"from_status" gorm:"type:varchar(20)"`             // status before the optimistic transition
	Message    string `json:"message" gorm:"type:text"`                        // platform message or error text
	BestEffort bool   `json:"best_effort" gorm:"default:false"`                // fired without awaiting (auto-pause)
	LatencyMs  int64  `json:"latency_ms"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for the ControlLog model
func (ControlLog) TableName() string {
	return "control_logs"
}

// ControlLogResponse represents the response for control log queries
type ControlLogResponse struct {
	ID            string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	CampaignID    string `json:"campaign_id" example:"cmp_42"`
	CorrelationID string `json:"correlation_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Action        string `json:"action" example:"pause"`
	Outcome       string `json:"outcome" example:"confirmed"`
	FromStatus    string `json:"from_status" example:"processing"`
	Message       string `json:"message,omitempty" example:"Campaign paused"`
	BestEffort    bool   `json:"best_effort" example:"false"`
	LatencyMs     int64  `json:"latency_ms" example:"184"`
	CreatedAt     string `json:"created_at" example:"2025-01-21T10:30:00Z"`
}
