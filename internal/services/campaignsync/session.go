package campaignsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DetailFetcher is the campaign detail collaborator
type DetailFetcher interface {
	GetCampaign(ctx context.Context, campaignID string) (models.Campaign, error)
}

// Platform is everything the engine needs from the messaging platform
type Platform interface {
	Commander
	InstanceLister
	DetailFetcher
}

// StatePublisher receives every state change, typically to stream it to
// dashboards
type StatePublisher interface {
	PublishState(campaignID string, state models.CampaignState)
}

// Deps are the collaborators shared by all sessions
type Deps struct {
	Platform  Platform
	Events    EventSubscriber
	Publisher StatePublisher // optional
	Journal   ControlJournal // optional
}

// Config holds the engine timing parameters
type Config struct {
	ControlTimeout     time.Duration
	GraceWindow        time.Duration
	ProgressThrottle   time.Duration
	RefetchDelay       time.Duration
	HealthInterval     time.Duration
	HealthFastInterval time.Duration
	AutoPauseAction    models.ControlAction
}

// DefaultConfig returns the production timings
func DefaultConfig() Config {
	return Config{
		ControlTimeout:     10 * time.Second,
		GraceWindow:        time.Second,
		ProgressThrottle:   500 * time.Millisecond,
		RefetchDelay:       time.Second,
		HealthInterval:     5 * time.Second,
		HealthFastInterval: time.Second,
		AutoPauseAction:    models.ActionStop,
	}
}

// Session wires the store, dispatcher, listener and health monitor of one
// campaign and owns every resource they use. Close releases all of them.
type Session struct {
	id         string
	campaignID string
	cfg        Config
	deps       Deps

	store      *Store
	timers     *Timers
	dispatcher *Dispatcher
	listener   *Listener
	monitor    *HealthMonitor

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	closed        bool
	refreshGen    uint64
	refreshCancel context.CancelFunc
}

// NewSession builds an unopened session
func NewSession(campaignID string, deps Deps, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         uuid.NewString(),
		campaignID: campaignID,
		cfg:        cfg,
		deps:       deps,
		store:      NewStore(campaignID, cfg.AutoPauseAction),
		timers:     NewTimers(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.dispatcher = NewDispatcher(s.store, s.apply, deps.Platform, deps.Journal, s.timers, DispatcherConfig{
		Timeout:     cfg.ControlTimeout,
		GraceWindow: cfg.GraceWindow,
	})
	s.listener = NewListener(deps.Events, s.apply, ListenerConfig{Throttle: cfg.ProgressThrottle})
	s.monitor = NewHealthMonitor(deps.Platform, s.emitHealth, HealthMonitorConfig{
		Interval:     cfg.HealthInterval,
		FastInterval: cfg.HealthFastInterval,
	})
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// CampaignID returns the tracked campaign
func (s *Session) CampaignID() string {
	return s.campaignID
}

// State returns the reconciled campaign state
func (s *Session) State() models.CampaignState {
	return s.store.State()
}

// Open loads the campaign and instance connectivity concurrently, then
// attaches to the push stream. Monitoring starts once the campaign is active.
func (s *Session) Open(ctx context.Context) error {
	var (
		campaign  models.Campaign
		instances []models.Instance
		listErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.deps.Platform.GetCampaign(gctx, s.campaignID)
		if err != nil {
			return fmt.Errorf("failed to fetch campaign %s: %w", s.campaignID, err)
		}
		campaign = c
		return nil
	})
	g.Go(func() error {
		// connectivity is best effort here, the monitor polls again
		instances, listErr = s.deps.Platform.ListInstances(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := s.apply(DetailLoaded{Campaign: campaign}); err != nil {
		return err
	}
	if listErr != nil {
		logrus.Warnf("Initial instance listing for campaign %s failed: %v", s.campaignID, listErr)
	} else if len(campaign.InstanceIDs) > 0 {
		snapshot := SnapshotHealth(instances, campaign.InstanceIDs, time.Now())
		s.apply(HealthSample{Snapshot: snapshot, Message: healthMessage(snapshot)})
	}

	s.listener.Subscribe(s.campaignID)
	logrus.WithFields(logrus.Fields{
		"campaign_id": s.campaignID,
		"session_id":  s.id,
		"status":      campaign.Status,
	}).Info("Campaign session opened")
	return nil
}

// Control runs a user control action
func (s *Session) Control(ctx context.Context, action models.ControlAction) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.dispatcher.RequestTransition(ctx, action)
}

// Refresh re-fetches the campaign detail. A newer Refresh supersedes an older
// one still in flight, whose result is then dropped.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.refreshCancel != nil {
		s.refreshCancel()
	}
	s.refreshGen++
	gen := s.refreshGen
	rctx, cancel := context.WithCancel(ctx)
	s.refreshCancel = cancel
	s.mu.Unlock()

	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	campaign, err := s.deps.Platform.GetCampaign(rctx, s.campaignID)

	s.mu.Lock()
	stale := gen != s.refreshGen || s.closed
	if !stale {
		s.refreshCancel = nil
	}
	s.mu.Unlock()

	if stale {
		return ErrRefreshSuperseded
	}
	if err != nil {
		return fmt.Errorf("failed to refresh campaign %s: %w", s.campaignID, err)
	}
	_, err = s.apply(DetailLoaded{Campaign: campaign})
	return err
}

// Close tears the session down: push subscription, poll loop, pending timers
// and best-effort commands. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.refreshCancel != nil {
		s.refreshCancel()
		s.refreshCancel = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.listener.Unsubscribe()
	s.monitor.Stop()
	s.timers.Close()
	s.dispatcher.Close()
	s.monitor.Wait()

	logrus.WithFields(logrus.Fields{
		"campaign_id": s.campaignID,
		"session_id":  s.id,
	}).Info("Campaign session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// apply is the single entry point of every producer. Effects run after the
// store lock is released.
func (s *Session) apply(ev Event) (Result, error) {
	if s.isClosed() {
		return Result{State: s.store.State()}, ErrSessionClosed
	}

	res, err := s.store.Apply(ev)
	if err != nil {
		return res, err
	}

	for _, eff := range res.Effects {
		s.runEffect(eff)
	}
	if res.Changed {
		s.syncMonitor(res.State)
		if s.deps.Publisher != nil {
			s.deps.Publisher.PublishState(s.campaignID, res.State)
		}
	}
	return res, nil
}

func (s *Session) runEffect(eff Effect) {
	switch eff.Kind {
	case EffectRefetch:
		s.timers.After(s.cfg.RefetchDelay, func() {
			if err := s.Refresh(s.ctx); err != nil && !errors.Is(err, ErrSessionClosed) && !errors.Is(err, ErrRefreshSuperseded) {
				logrus.Warnf("Deferred refresh of campaign %s failed: %v", s.campaignID, err)
			}
		})
	case EffectRemoteCommand:
		s.dispatcher.FireAndForget(eff.Action)
	}
}

// syncMonitor keeps polling exactly while the campaign is active
func (s *Session) syncMonitor(state models.CampaignState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if state.Campaign.Status.IsActive() && len(state.Campaign.InstanceIDs) > 0 {
		s.monitor.Start(s.ctx, state.Campaign.InstanceIDs)
		return
	}
	s.monitor.Stop()
}

func (s *Session) emitHealth(sample HealthSample) {
	if _, err := s.apply(sample); err != nil && !errors.Is(err, ErrSessionClosed) {
		logrus.Warnf("Failed to apply health sample for campaign %s: %v", s.campaignID, err)
	}
}
