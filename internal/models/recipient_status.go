package models

// RecipientStatus is the per-recipient delivery status shown on the dashboard
type RecipientStatus string

const (
	RecipientPending  RecipientStatus = "pending"
	RecipientSent     RecipientStatus = "sent"
	RecipientFailed   RecipientStatus = "failed"
	RecipientNotExist RecipientStatus = "not_exist"
	RecipientStopped  RecipientStatus = "stopped"
)

// IsValid reports whether s is a known recipient status
func (s RecipientStatus) IsValid() bool {
	switch s {
	case RecipientPending, RecipientSent, RecipientFailed, RecipientNotExist, RecipientStopped:
		return true
	default:
		return false
	}
}

// ParseMessageStatus maps the lastMessageStatus of a progress event to a
// recipient status. The platform reports "success" and "error" for some
// senders, so those aliases are accepted too.
func ParseMessageStatus(s string) (RecipientStatus, bool) {
	switch s {
	case "sent", "success", "delivered":
		return RecipientSent, true
	case "failed", "error":
		return RecipientFailed, true
	case "not_exist", "notExist", "not_exists":
		return RecipientNotExist, true
	case "stopped":
		return RecipientStopped, true
	default:
		return "", false
	}
}
