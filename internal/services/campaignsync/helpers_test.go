package campaignsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/stretchr/testify/require"
)

// fakePlatform is an in-memory messaging platform
type fakePlatform struct {
	mu sync.Mutex

	campaign    models.Campaign
	campaignErr error
	getCalls    int
	getGate     chan struct{} // when set, GetCampaign waits on it or ctx

	instances []models.Instance
	listErr   error
	listCalls int

	controlResp  models.ControlResponse
	controlErr   error
	controlGate  chan struct{} // when set, Control waits on it or ctx
	controlCalls []models.ControlRequest
}

func newFakePlatform(campaign models.Campaign, instances ...models.Instance) *fakePlatform {
	return &fakePlatform{
		campaign:    campaign,
		instances:   instances,
		controlResp: models.ControlResponse{Status: true},
	}
}

func (f *fakePlatform) Control(ctx context.Context, req models.ControlRequest) (models.ControlResponse, error) {
	f.mu.Lock()
	f.controlCalls = append(f.controlCalls, req)
	gate, resp, err := f.controlGate, f.controlResp, f.controlErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.ControlResponse{}, ctx.Err()
		}
	}
	return resp, err
}

func (f *fakePlatform) ListInstances(ctx context.Context) ([]models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Instance(nil), f.instances...), nil
}

func (f *fakePlatform) GetCampaign(ctx context.Context, campaignID string) (models.Campaign, error) {
	f.mu.Lock()
	f.getCalls++
	gate := f.getGate
	campaign, err := f.campaign.Clone(), f.campaignErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Campaign{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Campaign{}, err
	}
	if campaign.ID != campaignID {
		return models.Campaign{}, fmt.Errorf("campaign %s not found", campaignID)
	}
	return campaign, nil
}

func (f *fakePlatform) setCampaign(c models.Campaign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaign = c
}

func (f *fakePlatform) setInstances(instances ...models.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances = instances
}

func (f *fakePlatform) controls() []models.ControlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ControlRequest(nil), f.controlCalls...)
}

func (f *fakePlatform) gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// fakeSubscriber delivers events synchronously to live subscriptions
type fakeSubscriber struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*fakeSubscription
	total  int
}

type fakeSubscription struct {
	owner      *fakeSubscriber
	id         int
	campaignID string
	handler    func(models.PushEvent)
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{subs: make(map[int]*fakeSubscription)}
}

func (f *fakeSubscriber) Subscribe(campaignID string, handler func(models.PushEvent)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.total++
	sub := &fakeSubscription{owner: f, id: f.nextID, campaignID: campaignID, handler: handler}
	f.subs[sub.id] = sub
	return sub
}

func (s *fakeSubscription) Release() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	delete(s.owner.subs, s.id)
}

// emit delivers ev to every live subscription of campaignID
func (f *fakeSubscriber) emit(campaignID string, ev models.PushEvent) {
	f.mu.Lock()
	var handlers []func(models.PushEvent)
	for _, sub := range f.subs {
		if sub.campaignID == campaignID {
			handlers = append(handlers, sub.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeSubscriber) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSubscriber) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// recordingJournal keeps every control log entry
type recordingJournal struct {
	mu      sync.Mutex
	entries []models.ControlLog
}

func (j *recordingJournal) Record(entry *models.ControlLog) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *entry)
}

func (j *recordingJournal) all() []models.ControlLog {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.ControlLog(nil), j.entries...)
}

func pushEvent(t *testing.T, eventType string, payload interface{}) models.PushEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.PushEvent{Type: eventType, Data: data}
}

func intPtr(v int) *int {
	return &v
}

func recipients(n int) []models.Recipient {
	out := make([]models.Recipient, n)
	for i := range out {
		out[i] = models.Recipient{
			Name:  fmt.Sprintf("Recipient %d", i),
			Phone: fmt.Sprintf("+8490000%04d", i),
		}
	}
	return out
}

func testCampaign(id string, status models.CampaignStatus, n int, instanceIDs ...string) models.Campaign {
	return models.Campaign{
		ID:          id,
		Name:        "Campaign " + id,
		Status:      status,
		Counters:    models.Counters{Total: n},
		InstanceIDs: instanceIDs,
		Recipients:  recipients(n),
	}
}

func connected(id string) models.Instance {
	return models.Instance{ID: id, ConnectivityStatus: models.ConnectivityConnected}
}

func disconnected(id string) models.Instance {
	return models.Instance{ID: id, ConnectivityStatus: "disconnected"}
}

// healthy is a sample with every one of n instances connected
func healthy(n int) HealthSample {
	return HealthSample{Snapshot: models.HealthSnapshot{ConnectedCount: n, TotalCount: n}}
}

// testConfig keeps engine timings short
func testConfig() Config {
	return Config{
		ControlTimeout:     time.Second,
		GraceWindow:        20 * time.Millisecond,
		ProgressThrottle:   0,
		RefetchDelay:       10 * time.Millisecond,
		HealthInterval:     20 * time.Millisecond,
		HealthFastInterval: 10 * time.Millisecond,
		AutoPauseAction:    models.ActionStop,
	}
}
