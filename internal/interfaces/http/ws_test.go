package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.Serve))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	return conn
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := dialHub(t, hub)

	hub.Broadcast(ProgressEvent{XP: 1000, Level: 1, Events: 3, Completed: []string{"rncp-6"}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev ProgressEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.InDelta(t, 1000.0, ev.XP, 1e-9)
	assert.Equal(t, []string{"rncp-6"}, ev.Completed)
}

func TestHubBroadcast_ConcurrentMutations(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := dialHub(t, hub)

	// Prove the delivery path works before hammering it.
	hub.Broadcast(ProgressEvent{XP: 1})
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var first ProgressEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.InDelta(t, 1.0, first.XP, 1e-9)

	// Mutation handlers broadcast from their own request goroutines; the
	// per-client writer must serialize what reaches the connection.
	const goroutines = 4
	const eventsEach = 200

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			var ev ProgressEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsEach; j++ {
				hub.Broadcast(ProgressEvent{XP: float64(j)})
			}
		}()
	}
	wg.Wait()

	// Closing from our side unblocks the drain; a client dropped for
	// backpressure partway through is a legitimate outcome. What must not
	// happen is a concurrent write on the connection.
	conn.Close()
	<-drained
}

func TestHubBroadcast_DisconnectedClientUnregistered(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := dialHub(t, hub)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)

	// Broadcasting with no subscribers is a no-op.
	hub.Broadcast(ProgressEvent{XP: 1})
	assert.Equal(t, 0, hub.ClientCount())
}
