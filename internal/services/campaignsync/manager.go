package campaignsync

import (
	"context"
	"sort"
	"sync"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionInfo describes an open session
type SessionInfo struct {
	SessionID  string                `json:"session_id"`
	CampaignID string                `json:"campaign_id"`
	Refs       int                   `json:"refs"`
	Status     models.CampaignStatus `json:"status"`
	Version    uint64                `json:"version"`
}

type managedSession struct {
	session *Session
	refs    int
	ready   chan struct{}
	err     error
}

// Manager reference-counts sessions per campaign: the first Acquire opens the
// session, the last release closes it.
type Manager struct {
	deps Deps
	cfg  Config

	mu       sync.Mutex
	closed   bool
	sessions map[string]*managedSession
}

// NewManager creates a manager
func NewManager(deps Deps, cfg Config) *Manager {
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[string]*managedSession),
	}
}

// Acquire returns the session of campaignID, opening it if needed, and a
// release func that must be called exactly once when the caller is done
// (extra calls are ignored).
func (m *Manager) Acquire(ctx context.Context, campaignID string) (*Session, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrSessionClosed
	}
	ms, ok := m.sessions[campaignID]
	if ok {
		ms.refs++
		m.mu.Unlock()

		select {
		case <-ms.ready:
		case <-ctx.Done():
			m.release(campaignID, ms)
			return nil, nil, ctx.Err()
		}
		if ms.err != nil {
			m.release(campaignID, ms)
			return nil, nil, ms.err
		}
		return ms.session, m.releaseFunc(campaignID, ms), nil
	}

	ms = &managedSession{
		session: NewSession(campaignID, m.deps, m.cfg),
		refs:    1,
		ready:   make(chan struct{}),
	}
	m.sessions[campaignID] = ms
	m.mu.Unlock()

	err := ms.session.Open(ctx)
	if err != nil {
		m.mu.Lock()
		ms.err = err
		if m.sessions[campaignID] == ms {
			delete(m.sessions, campaignID)
		}
		m.mu.Unlock()
		close(ms.ready)
		ms.session.Close()
		return nil, nil, err
	}
	close(ms.ready)
	return ms.session, m.releaseFunc(campaignID, ms), nil
}

// Get returns an already open session without taking a reference
func (m *Manager) Get(campaignID string) (*Session, bool) {
	m.mu.Lock()
	ms, ok := m.sessions[campaignID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-ms.ready:
		if ms.err != nil {
			return nil, false
		}
		return ms.session, true
	default:
		return nil, false
	}
}

// Sessions lists the open sessions ordered by campaign id
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for campaignID, ms := range m.sessions {
		select {
		case <-ms.ready:
		default:
			continue
		}
		if ms.err != nil {
			continue
		}
		state := ms.session.State()
		infos = append(infos, SessionInfo{
			SessionID:  ms.session.ID(),
			CampaignID: campaignID,
			Refs:       ms.refs,
			Status:     state.Campaign.Status,
			Version:    state.Version,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CampaignID < infos[j].CampaignID })
	return infos
}

// Close closes every session regardless of outstanding references
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, ms := range sessions {
		<-ms.ready
		ms.session.Close()
	}
	logrus.Infof("Closed %d campaign session(s)", len(sessions))
}

func (m *Manager) releaseFunc(campaignID string, ms *managedSession) func() {
	var once sync.Once
	return func() {
		once.Do(func() { m.release(campaignID, ms) })
	}
}

func (m *Manager) release(campaignID string, ms *managedSession) {
	m.mu.Lock()
	ms.refs--
	last := ms.refs <= 0
	if last && m.sessions[campaignID] == ms {
		delete(m.sessions, campaignID)
	}
	m.mu.Unlock()

	if last {
		<-ms.ready
		ms.session.Close()
	}
}
