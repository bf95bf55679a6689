package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// SSEHub manages Server-Sent Events connections for real-time campaign state
// streaming
type SSEHub struct {
	// Key format: "campaign:campaign_id"
	clients map[string]map[chan []byte]bool
	mu      sync.RWMutex
}

// NewSSEHub creates a new SSE hub
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]map[chan []byte]bool),
	}
}

// RegisterClient registers a new SSE client for a campaign
func (h *SSEHub) RegisterClient(campaignID string) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := fmt.Sprintf("campaign:%s", campaignID)
	clientChan := make(chan []byte, 10)

	if h.clients[key] == nil {
		h.clients[key] = make(map[chan []byte]bool)
	}
	h.clients[key][clientChan] = true

	logrus.Infof("SSE client registered for %s (total clients: %d)", key, len(h.clients[key]))
	return clientChan
}

// UnregisterClient unregisters an SSE client
func (h *SSEHub) UnregisterClient(campaignID string, clientChan chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := fmt.Sprintf("campaign:%s", campaignID)
	if h.clients[key] != nil {
		if _, ok := h.clients[key][clientChan]; ok {
			delete(h.clients[key], clientChan)
			close(clientChan)
		}

		// Clean up empty maps
		if len(h.clients[key]) == 0 {
			delete(h.clients, key)
		}
	}

	logrus.Infof("SSE client unregistered for %s (remaining clients: %d)", key, len(h.clients[key]))
}

// PublishState broadcasts a state snapshot to every client of the campaign
func (h *SSEHub) PublishState(campaignID string, state models.CampaignState) {
	message, err := FormatStateEvent(state)
	if err != nil {
		logrus.Errorf("Failed to marshal state for SSE: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	key := fmt.Sprintf("campaign:%s", campaignID)
	for clientChan := range h.clients[key] {
		select {
		case clientChan <- message:
		default:
			// Channel is full, the next snapshot supersedes this one
			logrus.Warnf("SSE client channel full, skipping: %s", key)
		}
	}
}

// FormatStateEvent formats a state snapshot as an SSE "state" event
func FormatStateEvent(state models.CampaignState) ([]byte, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: state\ndata: %s\n\n", stateJSON)), nil
}

// GetClientCount returns the number of clients for a campaign
func (h *SSEHub) GetClientCount(campaignID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, exists := h.clients[fmt.Sprintf("campaign:%s", campaignID)]; exists {
		return len(clients)
	}
	return 0
}

// SendHeartbeat sends a heartbeat comment to keep connections alive
func (h *SSEHub) SendHeartbeat(campaignID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, exists := h.clients[fmt.Sprintf("campaign:%s", campaignID)]
	if !exists {
		return
	}

	heartbeat := []byte(fmt.Sprintf(": heartbeat %s\n\n", time.Now().Format(time.RFC3339)))
	for clientChan := range clients {
		select {
		case clientChan <- heartbeat:
		default:
			// Skip if channel is full
		}
	}
}

// CloseAll ends every stream, used on shutdown
func (h *SSEHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, clients := range h.clients {
		for clientChan := range clients {
			close(clientChan)
		}
		delete(h.clients, key)
	}
}
