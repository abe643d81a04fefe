package internal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xKoRx/echo/sdk/domain"
)

func TestEventsFeed_Healthz(t *testing.T) {
	srv := httptest.NewServer(NewEventsFeed(NewRecentEvents(10, nil), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestEventsFeed_BacklogThenLive(t *testing.T) {
	ctx := context.Background()
	events := NewRecentEvents(10, nil)
	events.Add(ctx, routed("old-1"))
	events.Add(ctx, routed("old-2"))
	events.Add(ctx, routed("old-3"))

	srv := httptest.NewServer(NewEventsFeed(events, nil).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?limit=2"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev domain.RoutedEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "old-2", ev.EventID)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "old-3", ev.EventID)

	// El seguidor se registra antes del backlog, así que un evento nuevo llega.
	events.Add(ctx, routed("live"))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "live", ev.EventID)
}

func TestEventsFeed_ListenAndShutdown(t *testing.T) {
	feed := NewEventsFeed(NewRecentEvents(10, nil), nil)
	require.NoError(t, feed.Listen("127.0.0.1:0"))
	assert.NotEmpty(t, feed.Addr())

	done := make(chan error, 1)
	go func() { done <- feed.Serve() }()

	resp, err := http.Get("http://" + feed.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, feed.Shutdown(ctx))
	assert.NoError(t, <-done)
}
