package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifierPostsMessage(t *testing.T) {
	var got SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: srv.URL, Channel: "#alerts"})
	ev := Event{Symbol: "KGHM", Kind: Below, Threshold: 110, Price: 109.4, At: time.Now()}

	require.NoError(t, n.Notify(context.Background(), ev))
	assert.Equal(t, "#alerts", got.Channel)
	assert.Contains(t, got.Text, "ALERT! KGHM fell below 110.00")
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
}

func TestSlackNotifierDedupeAndRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: srv.URL, RateLimitPerMin: 2})
	ctx := context.Background()

	ev := Event{Symbol: "PGE", Kind: Above, Threshold: 8}
	require.NoError(t, n.Notify(ctx, ev))
	require.NoError(t, n.Notify(ctx, ev))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "duplicate inside the window is skipped")

	require.NoError(t, n.Notify(ctx, Event{Symbol: "PGE", Kind: Above, Threshold: 9}))
	require.NoError(t, n.Notify(ctx, Event{Symbol: "PGE", Kind: Above, Threshold: 10}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "third distinct alert in a minute is rate limited")
}

func TestSlackNotifierRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: srv.URL})
	n.backoff = time.Millisecond

	require.NoError(t, n.Notify(context.Background(), Event{Symbol: "LPP", Kind: Above, Threshold: 1}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	atomic.StoreInt32(&hits, -10)
	err := n.Notify(context.Background(), Event{Symbol: "LPP", Kind: Above, Threshold: 2})
	assert.Error(t, err)
}

func TestSlackNotifierFailedDeliveryIsNotDeduped(t *testing.T) {
	var healthy atomic.Bool
	var delivered int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		atomic.AddInt32(&delivered, 1)
	}))
	defer srv.Close()

	n := NewSlackNotifier(SlackConfig{Enabled: true, WebhookURL: srv.URL, MaxAttempts: 2})
	n.backoff = time.Millisecond
	ev := Event{Symbol: "CDPROJEKT", Kind: Below, Threshold: 140, Price: 139.5}

	assert.Error(t, n.Notify(context.Background(), ev))

	healthy.Store(true)
	require.NoError(t, n.Notify(context.Background(), ev))
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered), "retry after an outage is delivered")

	require.NoError(t, n.Notify(context.Background(), ev))
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered), "delivered alert is deduped")
}

func TestSlackNotifierDisabled(t *testing.T) {
	n := NewSlackNotifier(SlackConfig{WebhookURL: "http://127.0.0.1:1"})
	assert.NoError(t, n.Notify(context.Background(), Event{Symbol: "X"}))
}
