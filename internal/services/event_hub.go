package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/onegreenvn/campaign-monitor/internal/services/campaignsync"
	"github.com/sirupsen/logrus"
)

// EventHub routes raw push events from the transport to the subscribers of
// the campaign they belong to
type EventHub struct {
	// Key format: "campaign:campaign_id"
	subscribers map[string]map[string]*hubSubscription
	mu          sync.RWMutex
}

type hubSubscription struct {
	id       string
	key      string
	hub      *EventHub
	handler  func(models.PushEvent)
	mu       sync.Mutex
	released bool
}

// NewEventHub creates a new event hub
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[string]map[string]*hubSubscription),
	}
}

// Subscribe registers handler for the events of campaignID
func (h *EventHub) Subscribe(campaignID string, handler func(models.PushEvent)) campaignsync.Subscription {
	key := fmt.Sprintf("campaign:%s", campaignID)
	sub := &hubSubscription{
		id:      uuid.NewString(),
		key:     key,
		hub:     h,
		handler: handler,
	}

	h.mu.Lock()
	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[string]*hubSubscription)
	}
	h.subscribers[key][sub.id] = sub
	count := len(h.subscribers[key])
	h.mu.Unlock()

	logrus.Debugf("Event subscriber registered for %s (total subscribers: %d)", key, count)
	return sub
}

// Release detaches the subscription. It waits for an in-flight delivery, so
// the handler is never called once Release has returned.
func (s *hubSubscription) Release() {
	s.hub.mu.Lock()
	if subs := s.hub.subscribers[s.key]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.hub.subscribers, s.key)
		}
	}
	s.hub.mu.Unlock()

	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

func (s *hubSubscription) deliver(ev models.PushEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.handler(ev)
}

// Dispatch decodes one raw message and routes it. Malformed messages and
// messages without a campaign id are dropped.
func (h *EventHub) Dispatch(raw []byte) {
	var ev models.PushEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
		logrus.Debugf("Dropping malformed push event: %s", truncate(raw, 200))
		return
	}
	h.DispatchEvent(ev)
}

// DispatchEvent routes an already decoded event
func (h *EventHub) DispatchEvent(ev models.PushEvent) {
	var header models.PushEventHeader
	if len(ev.Data) == 0 || json.Unmarshal(ev.Data, &header) != nil || header.CampaignID == "" {
		logrus.Debugf("Dropping push event %q without campaign id", ev.Type)
		return
	}

	key := fmt.Sprintf("campaign:%s", header.CampaignID)
	h.mu.RLock()
	subs := make([]*hubSubscription, 0, len(h.subscribers[key]))
	for _, sub := range h.subscribers[key] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// GetSubscriberCount returns the number of subscribers of a campaign
func (h *EventHub) GetSubscriberCount(campaignID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[fmt.Sprintf("campaign:%s", campaignID)])
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
