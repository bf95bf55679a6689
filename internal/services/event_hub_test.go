package services

import (
	"sync"
	"testing"
	"time"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventSink struct {
	mu     sync.Mutex
	events []models.PushEvent
}

func (s *eventSink) handle(ev models.PushEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestEventHubRoutesByCampaign(t *testing.T) {
	hub := NewEventHub()
	var c1, c2 eventSink
	hub.Subscribe("c1", c1.handle)
	hub.Subscribe("c2", c2.handle)

	hub.Dispatch([]byte(`{"type":"progress","data":{"campaignId":"c1","sent":1,"failed":0,"notExist":0}}`))
	hub.Dispatch([]byte(`{"type":"paused","data":{"campaignId":"c2"}}`))
	hub.Dispatch([]byte(`{"type":"stopped","data":{"campaignId":"c3"}}`))

	assert.Equal(t, []string{"progress"}, c1.types())
	assert.Equal(t, []string{"paused"}, c2.types())
	assert.Equal(t, 1, hub.GetSubscriberCount("c1"))
	assert.Equal(t, 0, hub.GetSubscriberCount("c3"))
}

func TestEventHubFanOut(t *testing.T) {
	hub := NewEventHub()
	var a, b eventSink
	hub.Subscribe("c1", a.handle)
	hub.Subscribe("c1", b.handle)

	hub.DispatchEvent(models.PushEvent{Type: "resumed", Data: []byte(`{"campaignId":"c1"}`)})

	assert.Equal(t, []string{"resumed"}, a.types())
	assert.Equal(t, []string{"resumed"}, b.types())
	assert.Equal(t, 2, hub.GetSubscriberCount("c1"))
}

func TestEventHubDropsMalformed(t *testing.T) {
	hub := NewEventHub()
	var sink eventSink
	hub.Subscribe("c1", sink.handle)

	for _, raw := range []string{
		`not json`,
		`{"data":{"campaignId":"c1"}}`,
		`{"type":"paused"}`,
		`{"type":"paused","data":"c1"}`,
		`{"type":"paused","data":{"campaign":"c1"}}`,
	} {
		hub.Dispatch([]byte(raw))
	}

	assert.Empty(t, sink.types())
}

func TestEventHubRelease(t *testing.T) {
	hub := NewEventHub()
	var sink eventSink
	sub := hub.Subscribe("c1", sink.handle)

	sub.Release()
	sub.Release()

	hub.Dispatch([]byte(`{"type":"paused","data":{"campaignId":"c1"}}`))
	assert.Empty(t, sink.types())
	assert.Equal(t, 0, hub.GetSubscriberCount("c1"))
}

func TestEventHubReleaseWaitsForDelivery(t *testing.T) {
	hub := NewEventHub()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var mu sync.Mutex
	delivered := 0

	sub := hub.Subscribe("c1", func(models.PushEvent) {
		close(entered)
		<-unblock
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	go hub.Dispatch([]byte(`{"type":"paused","data":{"campaignId":"c1"}}`))
	<-entered

	released := make(chan struct{})
	go func() {
		sub.Release()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("Release returned during delivery")
	case <-time.After(20 * time.Millisecond):
	}

	close(unblock)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Release did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, delivered)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate([]byte("abc"), 3))
	assert.Equal(t, "ab...", truncate([]byte("abc"), 2))
}
