package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_PublishFanOut(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 2, hub.Count())

	hub.Publish(Event{Type: SessionOpened, ComputerID: 1, SessionID: 7})

	for _, sub := range []*Subscription{a, b} {
		e := receive(t, sub)
		assert.Equal(t, SessionOpened, e.Type)
		assert.Equal(t, int64(7), e.SessionID)
		assert.False(t, e.At.IsZero(), "publish stamps the event time")
	}
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	defer sub.Close()

	hub.Publish(Event{Type: SessionOpened, SessionID: 1})
	hub.Publish(Event{Type: SessionClosed, SessionID: 1})

	e := receive(t, sub)
	assert.Equal(t, SessionOpened, e.Type)

	select {
	case e := <-sub.C:
		t.Fatalf("expected the second event to be dropped, got %v", e.Type)
	default:
	}
}

func TestHub_CloseSubscription(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Count())
	_, ok := <-sub.C
	assert.False(t, ok)

	// Publishing with no subscribers is a no-op
	hub.Publish(Event{Type: PaymentRecorded})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()

	hub.Close()
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late := hub.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok, "subscriptions after Close are closed immediately")
	assert.Equal(t, 0, hub.Count())
}

func TestServeWS_StreamsEvents(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: ComputerStatus, ComputerID: 3, Data: map[string]string{"status": "online"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "computer_status", got["type"])
	assert.Equal(t, float64(3), got["computer_id"])
	assert.Equal(t, "online", got["data"].(map[string]interface{})["status"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
