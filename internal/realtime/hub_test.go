package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendale/tutorhive/internal/tenant"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

func TestInstitutionIDExtraction(t *testing.T) {
	assert.Equal(t, "inst1", institutionID(map[string]any{"id": "inst1"}))
	assert.Equal(t, "inst1", institutionID(map[string]any{"institutionId": "inst1"}))
	assert.Equal(t, "inst1", institutionID(tenant.Institution{ID: "inst1"}))
	assert.Equal(t, "inst1", institutionID(tenant.SubscriptionRecord{ID: "sub1", InstitutionID: "inst1"}))
	assert.Empty(t, institutionID(map[string]any{"name": "x"}))
	assert.Empty(t, institutionID("just a string"))
}

func TestShouldSendFiltering(t *testing.T) {
	h := testHub()
	event := &Event{
		Type: EventSubscriptionActivated,
		Data: map[string]any{"id": "inst1"},
	}

	all := &Client{sub: Subscription{AllEvents: true}}
	assert.True(t, h.shouldSend(all, event))

	byType := &Client{sub: Subscription{EventTypes: []string{EventSubscriptionActivated}}}
	assert.True(t, h.shouldSend(byType, event))

	otherType := &Client{sub: Subscription{EventTypes: []string{EventInstitutionProvisioned}}}
	assert.False(t, h.shouldSend(otherType, event))

	byInst := &Client{sub: Subscription{InstitutionIDs: []string{"inst1"}}}
	assert.True(t, h.shouldSend(byInst, event))

	otherInst := &Client{sub: Subscription{InstitutionIDs: []string{"inst2"}}}
	assert.False(t, h.shouldSend(otherInst, event))

	both := &Client{sub: Subscription{
		EventTypes:     []string{EventSubscriptionActivated},
		InstitutionIDs: []string{"inst1"},
	}}
	assert.True(t, h.shouldSend(both, event))
}

func TestHubDeliversPublishedEvents(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = resp.Body.Close() }()

	// Wait for the registration to land before publishing.
	require.Eventually(t, func() bool {
		return h.Stats()["connectedClients"].(int) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Publish(EventInstitutionProvisioned, tenant.Institution{ID: "inst1", Name: "Greenwood School"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(message, &event))
	assert.Equal(t, EventInstitutionProvisioned, event.Type)
	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "inst1", data["id"])
}

func TestHubRejectsUpgradeAfterShutdown(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()

	// Wait for Run to exit.
	require.Eventually(t, func() bool {
		select {
		case <-h.done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	h.HandleWebSocket(w, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := testHub() // Run not started, channel fills up

	for i := 0; i < 300; i++ {
		h.Publish(EventSubscriptionActivated, map[string]any{"id": "inst1"})
	}
	// No deadlock and no panic is the property under test.
	assert.Equal(t, int64(0), h.totalEvents.Load())
}
