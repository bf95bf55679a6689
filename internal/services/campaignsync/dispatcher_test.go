package campaignsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcherFixture struct {
	store      *Store
	platform   *fakePlatform
	journal    *recordingJournal
	timers     *Timers
	dispatcher *Dispatcher
}

func newDispatcherFixture(t *testing.T, status models.CampaignStatus, connectedInstances int, cfg DispatcherConfig) *dispatcherFixture {
	t.Helper()
	c := testCampaign("c1", status, 4, "i1")
	f := &dispatcherFixture{
		store:    loadedStore(t, c, connectedInstances),
		platform: newFakePlatform(c, connected("i1")),
		journal:  &recordingJournal{},
		timers:   NewTimers(),
	}
	f.dispatcher = NewDispatcher(f.store, f.store.Apply, f.platform, f.journal, f.timers, cfg)
	t.Cleanup(func() {
		f.timers.Close()
		f.dispatcher.Close()
	})
	return f
}

func TestDispatcherSuccessClearsFlagAfterGraceWindow(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignProcessing, 1, DispatcherConfig{
		Timeout:     time.Second,
		GraceWindow: 50 * time.Millisecond,
	})

	err := f.dispatcher.RequestTransition(context.Background(), models.ActionPause)
	require.NoError(t, err)

	state := f.store.State()
	assert.Equal(t, models.CampaignPaused, state.Campaign.Status)
	assert.True(t, state.Flags.IsPausing, "flag stays set during the grace window")

	// a stale processing snapshot inside the window must not flip the status back
	res, _ := f.store.Apply(progress(2, 0, 0))
	assert.False(t, res.Changed)

	assert.Eventually(t, func() bool {
		return f.store.State().Control == models.ControlIdle
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.CampaignPaused, f.store.State().Campaign.Status)

	assert.Equal(t, []models.ControlRequest{{CampaignID: "c1", Action: models.ActionPause}}, f.platform.controls())
	entries := f.journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ControlOutcomeConfirmed, entries[0].Outcome)
	assert.Equal(t, string(models.CampaignProcessing), entries[0].FromStatus)
	assert.False(t, entries[0].BestEffort)
	assert.NotEmpty(t, entries[0].CorrelationID)
}

func TestDispatcherRefusalReverts(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignProcessing, 1, DispatcherConfig{Timeout: time.Second})
	f.platform.controlResp = models.ControlResponse{Status: false, Message: "worker busy"}

	err := f.dispatcher.RequestTransition(context.Background(), models.ActionPause)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "worker busy", cmdErr.Message)
	assert.False(t, cmdErr.Timeout)
	assert.True(t, cmdErr.Retryable())
	assert.False(t, errors.Is(err, ErrRejected))

	state := f.store.State()
	assert.Equal(t, models.CampaignProcessing, state.Campaign.Status)
	assert.Equal(t, models.ControlFlags{}, state.Flags)
	assert.Contains(t, state.LastError, "worker busy")

	entries := f.journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ControlOutcomeFailed, entries[0].Outcome)
}

func TestDispatcherTransportErrorReverts(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignPaused, 1, DispatcherConfig{Timeout: time.Second})
	f.platform.controlErr = errors.New("connection refused")

	err := f.dispatcher.RequestTransition(context.Background(), models.ActionStop)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Error(), "connection refused")

	state := f.store.State()
	assert.Equal(t, models.CampaignPaused, state.Campaign.Status)
	assert.NotContains(t, state.Recipients, models.RecipientStopped)
}

func TestDispatcherTimeoutReverts(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignProcessing, 1, DispatcherConfig{Timeout: 30 * time.Millisecond})
	f.platform.controlGate = make(chan struct{})

	start := time.Now()
	err := f.dispatcher.RequestTransition(context.Background(), models.ActionStop)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.True(t, cmdErr.Timeout)
	assert.Less(t, time.Since(start), time.Second)

	state := f.store.State()
	assert.Equal(t, models.CampaignProcessing, state.Campaign.Status)
	assert.Equal(t, models.ControlIdle, state.Control)

	entries := f.journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ControlOutcomeTimeout, entries[0].Outcome)
}

func TestDispatcherRejectedResumeSendsNothing(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignPaused, 0, DispatcherConfig{Timeout: time.Second})
	before := f.store.State()

	err := f.dispatcher.RequestTransition(context.Background(), models.ActionResume)

	require.ErrorIs(t, err, ErrNoConnectedInstances)
	assert.Empty(t, f.platform.controls())
	assert.Equal(t, before, f.store.State())

	entries := f.journal.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ControlOutcomeRejected, entries[0].Outcome)
}

func TestDispatcherBusyRejectsSecondAction(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignProcessing, 1, DispatcherConfig{
		Timeout:     time.Second,
		GraceWindow: time.Minute,
	})

	require.NoError(t, f.dispatcher.RequestTransition(context.Background(), models.ActionPause))
	err := f.dispatcher.RequestTransition(context.Background(), models.ActionStop)

	require.ErrorIs(t, err, ErrControlBusy)
	assert.Len(t, f.platform.controls(), 1)
}

func TestDispatcherFireAndForgetDoesNotBlock(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignProcessing, 1, DispatcherConfig{Timeout: time.Second})
	f.platform.controlGate = make(chan struct{})
	before := f.store.State()

	done := make(chan struct{})
	go func() {
		f.dispatcher.FireAndForget(models.ActionStop)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("FireAndForget blocked")
	}

	assert.Eventually(t, func() bool { return len(f.platform.controls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, before, f.store.State(), "best-effort commands never touch the store")

	// Close aborts the call in flight
	f.dispatcher.Close()
	entries := f.journal.all()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].BestEffort)
	assert.Equal(t, models.ControlOutcomeFailed, entries[0].Outcome)
}

func TestDispatcherFireAndForgetAfterClose(t *testing.T) {
	f := newDispatcherFixture(t, models.CampaignProcessing, 1, DispatcherConfig{Timeout: time.Second})
	f.dispatcher.Close()

	f.dispatcher.FireAndForget(models.ActionStop)

	assert.Empty(t, f.platform.controls())
}

func TestDispatcherNilJournal(t *testing.T) {
	c := testCampaign("c1", models.CampaignProcessing, 1)
	store := loadedStore(t, c, 1)
	timers := NewTimers()
	d := NewDispatcher(store, store.Apply, newFakePlatform(c), nil, timers, DispatcherConfig{})
	defer d.Close()
	defer timers.Close()

	assert.NoError(t, d.RequestTransition(context.Background(), models.ActionPause))
}
