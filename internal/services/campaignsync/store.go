package campaignsync

import (
	"fmt"
	"sync"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// proposal is an optimistic transition waiting for confirmation or abort
type proposal struct {
	action            models.ControlAction
	prevStatus        models.CampaignStatus
	prevRecipients    []models.RecipientStatus
	prevDisconnection models.Disconnection
}

// Store is the reconciling state machine behind one campaign. Every producer
// (dispatcher, listener, health monitor) goes through Apply, which holds the
// lock for the whole transition.
type Store struct {
	mu sync.Mutex

	campaignID      string
	autoPauseAction models.ControlAction

	campaign        models.Campaign
	projector       *Projector
	control         models.ControlState
	proposal        *proposal
	health          models.HealthSnapshot
	disconnection   models.Disconnection
	healthMessage   string
	lastError       string
	terminalHandled bool
	loaded          bool
	version         uint64
}

// NewStore creates an empty store for campaignID. autoPauseAction is the
// best-effort remote command fired when every instance disconnects.
func NewStore(campaignID string, autoPauseAction models.ControlAction) *Store {
	if autoPauseAction == "" {
		autoPauseAction = models.ActionStop
	}
	return &Store{
		campaignID:      campaignID,
		autoPauseAction: autoPauseAction,
		campaign:        models.Campaign{ID: campaignID, Status: models.CampaignPending},
		projector:       NewProjector(nil, models.Counters{}),
		control:         models.ControlIdle,
	}
}

// CampaignID returns the campaign this store tracks
func (s *Store) CampaignID() string {
	return s.campaignID
}

// State returns the current aggregate
func (s *Store) State() models.CampaignState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Apply runs one deterministic transition. An error is only returned for a
// rejected ControlRequested, in which case nothing changed.
func (s *Store) Apply(ev Event) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		changed bool
		effects []Effect
		err     error
	)

	switch e := ev.(type) {
	case ControlRequested:
		err = s.requestLocked(e.Action)
		changed = err == nil
	case ControlConfirmed:
		changed = s.confirmLocked(e.Action)
	case ControlFailed:
		var autoPaused bool
		changed, autoPaused = s.abortLocked(e.Action, e.Err)
		if autoPaused {
			effects = append(effects, Effect{Kind: EffectRemoteCommand, Action: s.autoPauseAction})
		}
	case ServerProgress:
		changed = s.progressLocked(e)
	case ServerPaused:
		changed = s.serverPausedLocked(e)
	case ServerResumed:
		changed = s.serverResumedLocked()
	case ServerStopped:
		changed = s.terminalLocked(models.CampaignStopped, e.Counters)
		if changed {
			effects = append(effects, Effect{Kind: EffectRefetch})
		}
	case ServerCompleted:
		changed = s.terminalLocked(models.CampaignCompleted, e.Counters)
		if changed {
			effects = append(effects, Effect{Kind: EffectRefetch})
		}
	case HealthSample:
		var autoPaused bool
		changed, autoPaused = s.healthLocked(e)
		if autoPaused {
			effects = append(effects, Effect{Kind: EffectRemoteCommand, Action: s.autoPauseAction})
		}
	case DetailLoaded:
		changed = s.loadLocked(e.Campaign)
	default:
		err = fmt.Errorf("unsupported event %T", ev)
	}

	if changed {
		s.version++
		logrus.WithFields(logrus.Fields{
			"campaign_id": s.campaignID,
			"event":       ev.eventName(),
			"status":      s.campaign.Status,
			"control":     s.control,
			"version":     s.version,
		}).Debug("Campaign state updated")
	}

	return Result{State: s.snapshotLocked(), Changed: changed, Effects: effects}, err
}

// optimisticTarget is the status a control action moves to, per the
// lifecycle table
func optimisticTarget(action models.ControlAction, from models.CampaignStatus) (models.CampaignStatus, bool) {
	switch action {
	case models.ActionStart:
		if from == models.CampaignPending {
			return models.CampaignProcessing, true
		}
	case models.ActionPause:
		if from == models.CampaignProcessing {
			return models.CampaignPaused, true
		}
	case models.ActionResume:
		if from == models.CampaignPaused {
			return models.CampaignProcessing, true
		}
	case models.ActionStop:
		if from == models.CampaignProcessing || from == models.CampaignPaused {
			return models.CampaignStopped, true
		}
	}
	return "", false
}

func (s *Store) requestLocked(action models.ControlAction) error {
	if s.control != models.ControlIdle {
		return ErrControlBusy
	}
	from := s.campaign.Status
	to, ok := optimisticTarget(action, from)
	if !ok {
		return fmt.Errorf("%w: cannot %s a %s campaign", ErrInvalidTransition, action, from)
	}
	if action == models.ActionResume && s.health.ConnectedCount == 0 {
		return ErrNoConnectedInstances
	}

	s.proposal = &proposal{
		action:            action,
		prevStatus:        from,
		prevRecipients:    s.projector.Statuses(),
		prevDisconnection: s.disconnection,
	}
	s.control = models.ControlStateFor(action)
	s.campaign.Status = to
	s.lastError = ""

	switch action {
	case models.ActionStop:
		s.projector.MarkRemainingStopped()
	case models.ActionResume:
		s.disconnection = models.Disconnection{}
	}
	return nil
}

func (s *Store) confirmLocked(action models.ControlAction) bool {
	if s.control != models.ControlStateFor(action) {
		return false
	}
	s.clearControlLocked()
	return true
}

// abortLocked reverts a failed proposal. autoPaused is set when a failed
// pause leaves behind a disconnection episode that began while it was in
// flight: the campaign stays paused and the auto-pause command is still owed.
func (s *Store) abortLocked(action models.ControlAction, cause error) (changed, autoPaused bool) {
	if cause != nil {
		s.lastError = cause.Error()
	} else {
		s.lastError = fmt.Sprintf("%s command failed", action)
	}

	// An authoritative push event may already have settled the state; then
	// there is nothing left to revert.
	if s.proposal == nil || s.proposal.action != action || s.control != models.ControlStateFor(action) {
		return true, false
	}
	if action == models.ActionPause && s.disconnection.Active && !s.proposal.prevDisconnection.Active {
		s.clearControlLocked()
		return true, true
	}
	s.campaign.Status = s.proposal.prevStatus
	s.projector.restore(s.proposal.prevRecipients)
	s.disconnection = s.proposal.prevDisconnection
	s.clearControlLocked()
	return true, false
}

func (s *Store) clearControlLocked() {
	s.control = models.ControlIdle
	s.proposal = nil
}

func (s *Store) progressLocked(e ServerProgress) bool {
	if s.control != models.ControlIdle || s.terminalHandled || s.campaign.Status.IsTerminal() {
		return false
	}

	switch s.campaign.Status {
	case models.CampaignPending:
		// Started elsewhere (another dashboard or a schedule)
		if e.Status != models.CampaignProcessing {
			return false
		}
		s.campaign.Status = models.CampaignProcessing
	case models.CampaignProcessing, models.CampaignPaused:
	default:
		return false
	}

	s.campaign.Counters = mergeCounters(s.campaign.Counters, e.Counters)
	if e.LastRecipient != "" && e.LastMessageStatus != "" {
		s.projector.ApplyEvent(e.LastRecipient, e.LastMessageStatus)
	}
	s.projector.Advance(s.campaign.Counters)
	return true
}

// mergeCounters keeps every counter non-decreasing
func mergeCounters(cur, next models.Counters) models.Counters {
	return models.Counters{
		Total:    max(cur.Total, next.Total),
		Sent:     max(cur.Sent, next.Sent),
		Failed:   max(cur.Failed, next.Failed),
		NotExist: max(cur.NotExist, next.NotExist),
	}
}

func (s *Store) serverPausedLocked(e ServerPaused) bool {
	if s.terminalHandled {
		return false
	}
	s.campaign.Status = models.CampaignPaused
	s.clearControlLocked()
	if e.InstancesDisconnected {
		s.disconnection = models.Disconnection{
			Active: true,
			Reason: "Paused by platform: all instances disconnected",
		}
	}
	return true
}

func (s *Store) serverResumedLocked() bool {
	if s.terminalHandled {
		return false
	}
	s.campaign.Status = models.CampaignProcessing
	s.clearControlLocked()
	s.disconnection = models.Disconnection{}
	return true
}

func (s *Store) terminalLocked(status models.CampaignStatus, counters models.Counters) bool {
	if s.terminalHandled {
		return false
	}
	s.terminalHandled = true
	s.campaign.Status = status
	s.campaign.Counters = mergeCounters(s.campaign.Counters, counters)
	s.projector.Advance(s.campaign.Counters)
	if status == models.CampaignStopped {
		s.projector.MarkRemainingStopped()
	}
	s.clearControlLocked()
	s.disconnection = models.Disconnection{}
	return true
}

func (s *Store) healthLocked(e HealthSample) (changed, autoPaused bool) {
	s.health = e.Snapshot
	s.healthMessage = e.Message
	changed = true

	if e.Snapshot.ConnectedCount == 0 {
		s.disconnection.ReadyToResume = false
	}

	switch {
	case e.AllDisconnected:
		if s.disconnection.Active || s.terminalHandled {
			return changed, false
		}
		if s.control == models.ControlPausing {
			// The pause in flight already halts sending; only the episode is
			// recorded so a reconnection can offer resume.
			s.disconnection = models.Disconnection{
				Active: true,
				Reason: "All assigned instances are disconnected",
			}
			return changed, false
		}
		if s.campaign.Status != models.CampaignProcessing {
			return changed, false
		}
		s.campaign.Status = models.CampaignPaused
		s.clearControlLocked()
		s.disconnection = models.Disconnection{
			Active: true,
			Reason: "All assigned instances are disconnected",
		}
		return changed, true
	case e.Reconnected:
		if s.disconnection.Active && s.campaign.Status == models.CampaignPaused {
			s.disconnection = models.Disconnection{
				Active:        false,
				Reason:        s.disconnection.Reason,
				ReadyToResume: true,
			}
		}
	}
	return changed, false
}

// loadLocked applies a campaign detail fetch. The first load initializes the
// store; later loads merge into it without lowering counters or reverting a
// recipient to pending. A terminal status is never left.
func (s *Store) loadLocked(c models.Campaign) bool {
	if c.ID != "" && c.ID != s.campaignID {
		logrus.Warnf("Ignoring detail for campaign %s in store for %s", c.ID, s.campaignID)
		return false
	}
	c = c.Clone()
	c.ID = s.campaignID
	if !c.Status.IsValid() {
		c.Status = models.CampaignPending
	}
	c.Status = s.loadedStatusLocked(c.Status)

	if s.loaded {
		c.Counters = mergeCounters(s.campaign.Counters, c.Counters)
		s.projector.Rebase(c.Recipients, c.Counters)
	} else {
		s.projector = NewProjector(c.Recipients, c.Counters)
		s.loaded = true
	}
	s.campaign = c

	if c.Status == models.CampaignStopped {
		s.projector.MarkRemainingStopped()
	}
	if c.Status.IsTerminal() && s.control == models.ControlIdle {
		s.terminalHandled = true
	}
	if !c.Status.IsActive() {
		s.disconnection = models.Disconnection{}
	}
	return true
}

// loadedStatusLocked picks the status after a detail fetch reporting next
func (s *Store) loadedStatusLocked(next models.CampaignStatus) models.CampaignStatus {
	cur := s.campaign.Status
	switch {
	case s.control != models.ControlIdle:
		// An in-flight command keeps its optimistic status until confirmed
		// or aborted; the fetched record may predate it.
		return cur
	case !s.loaded:
		return next
	case cur.IsTerminal() || s.terminalHandled:
		return cur
	case next == models.CampaignPending && cur != models.CampaignPending:
		// a started campaign never goes back to pending
		return cur
	}
	return next
}

func (s *Store) snapshotLocked() models.CampaignState {
	perInstance := make(map[string]string, len(s.health.PerInstance))
	for k, v := range s.health.PerInstance {
		perInstance[k] = v
	}
	health := s.health
	health.PerInstance = perInstance

	return models.CampaignState{
		Campaign:      s.campaign.Clone(),
		Recipients:    s.projector.Statuses(),
		Control:       s.control,
		Flags:         s.control.Flags(),
		Health:        health,
		Disconnection: s.disconnection,
		HealthMessage: s.healthMessage,
		LastError:     s.lastError,
		Version:       s.version,
	}
}
