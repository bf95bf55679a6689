package campaignsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/onegreenvn/campaign-monitor/internal/utils"
	"github.com/sirupsen/logrus"
)

// Commander sends control commands to the platform
type Commander interface {
	Control(ctx context.Context, req models.ControlRequest) (models.ControlResponse, error)
}

// ControlJournal records dispatched commands. Implementations must not block
// for long; a nil journal disables recording.
type ControlJournal interface {
	Record(entry *models.ControlLog)
}

// DispatcherConfig holds the command timing parameters
type DispatcherConfig struct {
	Timeout     time.Duration // client-side abort of the remote call
	GraceWindow time.Duration // delay before an acknowledged command clears its flag
}

// Dispatcher executes user control actions as propose → remote call →
// confirm (after the grace window) or abort (revert immediately).
type Dispatcher struct {
	campaignID string
	store      *Store
	apply      func(Event) (Result, error)
	commander  Commander
	journal    ControlJournal
	timers     *Timers
	cfg        DispatcherConfig

	mu     sync.Mutex
	closed bool
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher wires a dispatcher. apply is the session entry point so that
// effects of confirmations are executed like any other transition.
func NewDispatcher(store *Store, apply func(Event) (Result, error), commander Commander, journal ControlJournal, timers *Timers, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.GraceWindow < 0 {
		cfg.GraceWindow = 0
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		campaignID: store.CampaignID(),
		store:      store,
		apply:      apply,
		commander:  commander,
		journal:    journal,
		timers:     timers,
		cfg:        cfg,
		bg:         bg,
		cancel:     cancel,
	}
}

// RequestTransition runs a user control action. It returns an error wrapping
// ErrRejected when the action is not allowed (nothing changed, nothing sent)
// and a *CommandError when the platform refused or the call timed out (the
// optimistic transition has been reverted).
func (d *Dispatcher) RequestTransition(ctx context.Context, action models.ControlAction) error {
	fromStatus := d.store.State().Campaign.Status
	correlationID := uuid.NewString()

	if _, err := d.apply(ControlRequested{Action: action}); err != nil {
		d.record(correlationID, action, fromStatus, models.ControlOutcomeRejected, err.Error(), false, 0)
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := d.commander.Control(cctx, models.ControlRequest{CampaignID: d.campaignID, Action: action})
	latency := time.Since(start)

	if err == nil && resp.Status {
		if !d.timers.After(d.cfg.GraceWindow, func() {
			d.apply(ControlConfirmed{Action: action})
		}) {
			// Session is closing, nobody reads the flag any more
			logrus.Debugf("Campaign %s closed before %s confirmation", d.campaignID, action)
		}
		d.record(correlationID, action, fromStatus, models.ControlOutcomeConfirmed, resp.Message, false, latency)
		logrus.WithFields(logrus.Fields{
			"campaign_id": d.campaignID,
			"action":      action,
			"latency":     latency,
		}).Info("Control command acknowledged")
		return nil
	}

	cmdErr := &CommandError{Action: action, Message: resp.Message, Err: err}
	outcome := models.ControlOutcomeFailed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		cmdErr.Timeout = true
		outcome = models.ControlOutcomeTimeout
	}

	d.apply(ControlFailed{Action: action, Err: cmdErr})
	d.record(correlationID, action, fromStatus, outcome, cmdErr.Error(), false, latency)

	logrus.WithFields(logrus.Fields{
		"campaign_id": d.campaignID,
		"action":      action,
		"outcome":     outcome,
	}).Warnf("Control command failed: %v", cmdErr)
	utils.ReportWarning(cmdErr, map[string]string{
		"campaign_id": d.campaignID,
		"action":      string(action),
	})
	return cmdErr
}

// FireAndForget sends a best-effort command without touching the store and
// without blocking the caller. Nothing is sent once the dispatcher is closed.
func (d *Dispatcher) FireAndForget(action models.ControlAction) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	fromStatus := d.store.State().Campaign.Status
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(d.bg, d.cfg.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := d.commander.Control(ctx, models.ControlRequest{CampaignID: d.campaignID, Action: action})
		latency := time.Since(start)

		outcome, message := models.ControlOutcomeConfirmed, resp.Message
		switch {
		case err != nil:
			outcome, message = models.ControlOutcomeFailed, err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = models.ControlOutcomeTimeout
			}
			logrus.Warnf("Best-effort %s for campaign %s failed: %v", action, d.campaignID, err)
		case !resp.Status:
			outcome = models.ControlOutcomeFailed
			logrus.Warnf("Best-effort %s for campaign %s refused: %s", action, d.campaignID, resp.Message)
		default:
			logrus.Infof("Best-effort %s sent for campaign %s", action, d.campaignID)
		}
		d.record(uuid.NewString(), action, fromStatus, outcome, message, true, latency)
	}()
}

// Close aborts best-effort commands in flight and waits for them
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) record(correlationID string, action models.ControlAction, from models.CampaignStatus, outcome, message string, bestEffort bool, latency time.Duration) {
	if d.journal == nil {
		return
	}
	d.journal.Record(&models.ControlLog{
		CampaignID:    d.campaignID,
		CorrelationID: correlationID,
		Action:        string(action),
		Outcome:       outcome,
		FromStatus:    string(from),
		Message:       message,
		BestEffort:    bestEffort,
		LatencyMs:     latency.Milliseconds(),
		CreatedAt:     time.Now(),
	})
}
