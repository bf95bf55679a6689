package campaignsync

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// Subscription is a scoped handle on the push-event stream. Release is
// idempotent and no event is delivered to the handler after it returns.
type Subscription interface {
	Release()
}

// EventSubscriber routes push events by campaign id
type EventSubscriber interface {
	Subscribe(campaignID string, handler func(models.PushEvent)) Subscription
}

// ListenerConfig holds the progress throttle
type ListenerConfig struct {
	Throttle time.Duration
	Now      func() time.Time
}

// Listener turns push events of one campaign into store events
type Listener struct {
	subscriber EventSubscriber
	apply      func(Event) (Result, error)
	cfg        ListenerConfig

	mu         sync.Mutex
	campaignID string
	sub        Subscription
	generation uint64

	progressMu   sync.Mutex
	lastProgress time.Time
}

// NewListener creates a detached listener
func NewListener(subscriber EventSubscriber, apply func(Event) (Result, error), cfg ListenerConfig) *Listener {
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Listener{subscriber: subscriber, apply: apply, cfg: cfg}
}

// Subscribe attaches to campaignID. Subscribing again to the same campaign is
// a no-op; subscribing to another campaign releases the current handle first.
func (l *Listener) Subscribe(campaignID string) {
	l.mu.Lock()
	if l.sub != nil && l.campaignID == campaignID {
		l.mu.Unlock()
		return
	}
	prev := l.sub
	l.sub = nil
	l.generation++
	gen := l.generation
	l.campaignID = campaignID
	l.mu.Unlock()

	if prev != nil {
		prev.Release()
	}

	l.progressMu.Lock()
	l.lastProgress = time.Time{}
	l.progressMu.Unlock()

	sub := l.subscriber.Subscribe(campaignID, func(ev models.PushEvent) {
		l.handle(gen, ev)
	})

	l.mu.Lock()
	if l.generation != gen {
		// Unsubscribed or re-targeted while we were subscribing
		l.mu.Unlock()
		sub.Release()
		return
	}
	l.sub = sub
	l.mu.Unlock()

	logrus.Debugf("Listening to push events for campaign %s", campaignID)
}

// Unsubscribe releases the handle; a later Subscribe attaches again
func (l *Listener) Unsubscribe() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.generation++
	l.campaignID = ""
	l.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
}

// Attached reports whether a subscription is held
func (l *Listener) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub != nil
}

func (l *Listener) current(gen uint64) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.campaignID, l.generation == gen && l.campaignID != ""
}

// handle is the parsing boundary: anything malformed or addressed to another
// campaign is dropped without error
func (l *Listener) handle(gen uint64, ev models.PushEvent) {
	campaignID, live := l.current(gen)
	if !live {
		return
	}

	var header models.PushEventHeader
	if err := json.Unmarshal(ev.Data, &header); err != nil || header.CampaignID != campaignID {
		logrus.Debugf("Dropping %q event not addressed to campaign %s", ev.Type, campaignID)
		return
	}

	switch ev.Type {
	case models.EventProgress:
		l.handleProgress(ev.Data)
	case models.EventPaused, models.EventResumed:
		var p models.LifecyclePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		if ev.Type == models.EventPaused {
			l.apply(ServerPaused{InstancesDisconnected: p.InstancesDisconnected})
		} else {
			l.apply(ServerResumed{})
		}
	case models.EventStopped, models.EventCompleted:
		var p models.TerminalPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return
		}
		if p.Sent == nil || p.Failed == nil || p.NotExist == nil {
			logrus.Debugf("Dropping %q event with missing counters", ev.Type)
			return
		}
		counters := models.Counters{Sent: *p.Sent, Failed: *p.Failed, NotExist: *p.NotExist}
		if ev.Type == models.EventStopped {
			l.apply(ServerStopped{Counters: counters})
		} else {
			l.apply(ServerCompleted{Counters: counters})
		}
	default:
		logrus.Debugf("Dropping unknown push event type %q", ev.Type)
	}
}

func (l *Listener) handleProgress(data json.RawMessage) {
	var p models.ProgressPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.Sent == nil || p.Failed == nil || p.NotExist == nil {
		logrus.Debug("Dropping progress event with missing counters")
		return
	}

	ev := ServerProgress{
		Status:                p.Status,
		Counters:              models.Counters{Sent: *p.Sent, Failed: *p.Failed, NotExist: *p.NotExist},
		InstancesDisconnected: p.InstancesDisconnected,
	}
	if p.Total != nil {
		ev.Counters.Total = *p.Total
	}
	if status, ok := models.ParseMessageStatus(p.LastMessageStatus); ok && p.LastRecipient != "" {
		ev.LastRecipient = p.LastRecipient
		ev.LastMessageStatus = status
	}

	l.progressMu.Lock()
	defer l.progressMu.Unlock()

	now := l.cfg.Now()
	if !l.lastProgress.IsZero() && now.Sub(l.lastProgress) < l.cfg.Throttle {
		// excess events are dropped, not queued
		return
	}
	res, _ := l.apply(ev)
	if res.Changed {
		l.lastProgress = now
	}
}
