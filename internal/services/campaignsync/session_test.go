package campaignsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	states []models.CampaignState
}

func (p *recordingPublisher) PublishState(campaignID string, state models.CampaignState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

type sessionFixture struct {
	platform  *fakePlatform
	events    *fakeSubscriber
	publisher *recordingPublisher
	journal   *recordingJournal
	session   *Session
}

func newSessionFixture(t *testing.T, c models.Campaign, instances ...models.Instance) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		platform:  newFakePlatform(c, instances...),
		events:    newFakeSubscriber(),
		publisher: &recordingPublisher{},
		journal:   &recordingJournal{},
	}
	f.session = NewSession(c.ID, Deps{
		Platform:  f.platform,
		Events:    f.events,
		Publisher: f.publisher,
		Journal:   f.journal,
	}, testConfig())
	t.Cleanup(f.session.Close)
	return f
}

func (f *sessionFixture) open(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Open(context.Background()))
}

func TestSessionOpenLoadsCampaignAndHealth(t *testing.T) {
	c := testCampaign("c1", models.CampaignPaused, 4, "i1", "i2")
	c.Counters = models.Counters{Total: 4, Sent: 2}
	f := newSessionFixture(t, c, connected("i1"), disconnected("i2"))

	f.open(t)

	state := f.session.State()
	assert.Equal(t, models.CampaignPaused, state.Campaign.Status)
	assert.Equal(t, []models.RecipientStatus{sent, sent, pending, pending}, state.Recipients)
	assert.Equal(t, 1, state.Health.ConnectedCount)
	assert.Equal(t, 2, state.Health.TotalCount)
	assert.Equal(t, "1 of 2 instances disconnected (i2)", state.HealthMessage)
	assert.Equal(t, 1, f.events.active())
	assert.Positive(t, f.publisher.count())
	assert.NotEmpty(t, f.session.ID())
	assert.Equal(t, "c1", f.session.CampaignID())
}

func TestSessionOpenFailsWhenDetailUnavailable(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignProcessing, 1))
	f.platform.campaignErr = errors.New("bad gateway")

	err := f.session.Open(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad gateway")
	assert.Equal(t, 0, f.events.active())
}

func TestSessionOpenToleratesListingFailure(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignPending, 1, "i1"))
	f.platform.listErr = errors.New("timeout")

	f.open(t)

	assert.Equal(t, models.CampaignPending, f.session.State().Campaign.Status)
}

func TestSessionControlPauseResume(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignProcessing, 3, "i1"), connected("i1"))
	f.open(t)

	require.NoError(t, f.session.Control(context.Background(), models.ActionPause))
	assert.Eventually(t, func() bool { return f.session.State().Control == models.ControlIdle }, time.Second, 2*time.Millisecond)
	assert.Equal(t, models.CampaignPaused, f.session.State().Campaign.Status)

	require.NoError(t, f.session.Control(context.Background(), models.ActionResume))
	assert.Equal(t, models.CampaignProcessing, f.session.State().Campaign.Status)

	assert.Equal(t, []models.ControlRequest{
		{CampaignID: "c1", Action: models.ActionPause},
		{CampaignID: "c1", Action: models.ActionResume},
	}, f.platform.controls())
	assert.Len(t, f.journal.all(), 2)
}

func TestSessionDisconnectionEpisode(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignProcessing, 3, "i1"), disconnected("i1"))
	f.open(t)

	// the first poll sees every instance down and pauses
	assert.Eventually(t, func() bool { return f.session.State().Disconnection.Active }, time.Second, 2*time.Millisecond)
	state := f.session.State()
	assert.Equal(t, models.CampaignPaused, state.Campaign.Status)
	assert.Equal(t, models.ControlIdle, state.Control)

	// the remote command is best effort and does not touch the store
	assert.Eventually(t, func() bool { return len(f.platform.controls()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, models.ActionStop, f.platform.controls()[0].Action)

	err := f.session.Control(context.Background(), models.ActionResume)
	require.ErrorIs(t, err, ErrNoConnectedInstances)

	f.platform.setInstances(connected("i1"))
	assert.Eventually(t, func() bool { return f.session.State().Disconnection.ReadyToResume }, time.Second, 2*time.Millisecond)
	assert.False(t, f.session.State().Disconnection.Active)

	require.NoError(t, f.session.Control(context.Background(), models.ActionResume))
	state = f.session.State()
	assert.Equal(t, models.CampaignProcessing, state.Campaign.Status)
	assert.Equal(t, models.Disconnection{}, state.Disconnection)
}

func TestSessionTerminalEventsRefetchOnce(t *testing.T) {
	c := testCampaign("c1", models.CampaignProcessing, 3, "i1")
	f := newSessionFixture(t, c, connected("i1"))
	f.open(t)
	require.Equal(t, 1, f.platform.gets())

	done := c.Clone()
	done.Status = models.CampaignCompleted
	done.Counters = models.Counters{Total: 3, Sent: 3}
	f.platform.setCampaign(done)

	completed := pushEvent(t, models.EventCompleted, models.TerminalPayload{
		CampaignID: "c1", Sent: intPtr(3), Failed: intPtr(0), NotExist: intPtr(0),
	})
	f.events.emit("c1", completed)
	f.events.emit("c1", completed)

	assert.Eventually(t, func() bool { return f.platform.gets() == 2 }, time.Second, 2*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 2, f.platform.gets())

	state := f.session.State()
	assert.Equal(t, models.CampaignCompleted, state.Campaign.Status)
	assert.Equal(t, []models.RecipientStatus{sent, sent, sent}, state.Recipients)
}

func TestSessionRefreshSuperseded(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignPaused, 1), connected("i1"))
	f.open(t)

	f.platform.mu.Lock()
	f.platform.getGate = make(chan struct{})
	f.platform.mu.Unlock()

	first := make(chan error, 1)
	go func() { first <- f.session.Refresh(context.Background()) }()
	assert.Eventually(t, func() bool { return f.platform.gets() == 2 }, time.Second, time.Millisecond)

	f.platform.mu.Lock()
	f.platform.getGate = nil
	f.platform.mu.Unlock()

	require.NoError(t, f.session.Refresh(context.Background()))
	assert.ErrorIs(t, <-first, ErrRefreshSuperseded)
}

func TestSessionRefreshError(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignPaused, 1))
	f.open(t)
	f.platform.campaignErr = errors.New("boom")

	err := f.session.Refresh(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRefreshSuperseded)
	assert.Equal(t, models.CampaignPaused, f.session.State().Campaign.Status)
}

func TestSessionCloseReleasesEverything(t *testing.T) {
	f := newSessionFixture(t, testCampaign("c1", models.CampaignProcessing, 2, "i1"), connected("i1"))
	f.open(t)
	require.True(t, f.session.monitor.Running())

	f.session.Close()
	f.session.Close()

	assert.Equal(t, 0, f.events.active())
	assert.False(t, f.session.monitor.Running())
	assert.ErrorIs(t, f.session.Control(context.Background(), models.ActionPause), ErrSessionClosed)
	assert.ErrorIs(t, f.session.Refresh(context.Background()), ErrSessionClosed)

	_, err := f.session.apply(ServerPaused{})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, models.CampaignProcessing, f.session.State().Campaign.Status)
}

func TestSessionMonitorFollowsActiveStatus(t *testing.T) {
	c := testCampaign("c1", models.CampaignProcessing, 2, "i1")
	f := newSessionFixture(t, c, connected("i1"))
	f.open(t)
	assert.True(t, f.session.monitor.Running(), "processing campaigns are polled")

	// the deferred refetch must see the stopped record
	final := c.Clone()
	final.Status = models.CampaignStopped
	final.Counters = models.Counters{Total: 2, Sent: 1}
	f.platform.setCampaign(final)

	f.events.emit("c1", pushEvent(t, models.EventStopped, models.TerminalPayload{
		CampaignID: "c1", Sent: intPtr(1), Failed: intPtr(0), NotExist: intPtr(0),
	}))

	assert.Eventually(t, func() bool { return !f.session.monitor.Running() }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []models.RecipientStatus{sent, stopped}, f.session.State().Recipients)
}
