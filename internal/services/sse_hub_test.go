package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/onegreenvn/campaign-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatStateEvent(t *testing.T) {
	state := models.CampaignState{
		Campaign: models.Campaign{ID: "c1", Status: models.CampaignPaused},
		Control:  models.ControlIdle,
		Version:  7,
	}

	msg, err := FormatStateEvent(state)
	require.NoError(t, err)

	text := string(msg)
	require.True(t, strings.HasPrefix(text, "event: state\ndata: "))
	require.True(t, strings.HasSuffix(text, "\n\n"))

	var decoded models.CampaignState
	payload := strings.TrimSuffix(strings.TrimPrefix(text, "event: state\ndata: "), "\n\n")
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "c1", decoded.Campaign.ID)
	assert.Equal(t, uint64(7), decoded.Version)
}

func TestSSEHubPublishState(t *testing.T) {
	hub := NewSSEHub()
	ch1 := hub.RegisterClient("c1")
	ch2 := hub.RegisterClient("c1")
	other := hub.RegisterClient("c2")
	assert.Equal(t, 2, hub.GetClientCount("c1"))

	hub.PublishState("c1", models.CampaignState{Version: 1})

	for _, ch := range []chan []byte{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Contains(t, string(msg), `"version":1`)
		default:
			t.Fatal("client did not receive the state")
		}
	}
	assert.Empty(t, other)
}

func TestSSEHubSlowClientSkipped(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.RegisterClient("c1")

	for i := 0; i < cap(ch)+5; i++ {
		hub.PublishState("c1", models.CampaignState{Version: uint64(i)})
	}

	assert.Len(t, ch, cap(ch))
}

func TestSSEHubHeartbeat(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.RegisterClient("c1")

	hub.SendHeartbeat("c1")
	hub.SendHeartbeat("nobody")

	msg := <-ch
	assert.True(t, strings.HasPrefix(string(msg), ": heartbeat "))
}

func TestSSEHubUnregisterAndCloseAll(t *testing.T) {
	hub := NewSSEHub()
	ch1 := hub.RegisterClient("c1")
	ch2 := hub.RegisterClient("c2")

	hub.UnregisterClient("c1", ch1)
	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 0, hub.GetClientCount("c1"))

	hub.CloseAll()
	_, open = <-ch2
	assert.False(t, open)

	// a handler unregistering after shutdown must not double close
	assert.NotPanics(t, func() { hub.UnregisterClient("c2", ch2) })
}
