package models

// CampaignStatus is the lifecycle status of a campaign run
type CampaignStatus string

const (
	CampaignPending    CampaignStatus = "pending"
	CampaignProcessing CampaignStatus = "processing"
	CampaignPaused     CampaignStatus = "paused"
	CampaignStopped    CampaignStatus = "stopped"
	CampaignCompleted  CampaignStatus = "completed"
)

// IsValid reports whether s is a known campaign status
func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignPending, CampaignProcessing, CampaignPaused, CampaignStopped, CampaignCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the run has ended (stopped or completed)
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStopped || s == CampaignCompleted
}

// IsActive reports whether the run is in flight (processing or paused)
func (s CampaignStatus) IsActive() bool {
	return s == CampaignProcessing || s == CampaignPaused
}

// Counters holds the cumulative delivery counters of a campaign
type Counters struct {
	Total    int `json:"total"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	NotExist int `json:"notExist"`
}

// Processed returns the number of recipients that have a final outcome
func (c Counters) Processed() int {
	return c.Sent + c.Failed + c.NotExist
}

// DelayRange is the random delay window between two sends, in seconds
type DelayRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Recipient is one entry of the campaign recipient list
type Recipient struct {
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	Status RecipientStatus `json:"status,omitempty"` // present only when the detail record carries it
}

// Campaign is the authoritative campaign record returned by the platform
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      CampaignStatus `json:"status"`
	Counters    Counters       `json:"counters"`
	DelayRange  DelayRange     `json:"delayRange"`
	InstanceIDs []string       `json:"instanceIds"`
	Recipients  []Recipient    `json:"recipients"`
}

// Clone returns a deep copy so snapshots never share slices with the store
func (c Campaign) Clone() Campaign {
	out := c
	out.InstanceIDs = append([]string(nil), c.InstanceIDs...)
	out.Recipients = append([]Recipient(nil), c.Recipients...)
	return out
}
