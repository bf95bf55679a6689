package models

// ConnectivityConnected is the only connectivity status counted as healthy
const ConnectivityConnected = "connected"

// Instance is a message-sending device/account as reported by the platform
type Instance struct {
	ID                 string `json:"id"`
	Name               string `json:"name,omitempty"`
	ConnectivityStatus string `json:"connectivityStatus"`
}

// IsConnected reports whether the instance can currently send
func (i Instance) IsConnected() bool {
	return i.ConnectivityStatus == ConnectivityConnected
}
