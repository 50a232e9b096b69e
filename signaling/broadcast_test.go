package signaling

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestHub(t *testing.T) string {
	t.Helper()
	hub := NewBroadcastHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBroadcastAdapterRelaysEventsBetweenClients(t *testing.T) {
	url := startTestHub(t)
	ctx := context.Background()

	alice, err := NewBroadcastAdapter(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = alice.Close() })

	bob, err := NewBroadcastAdapter(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bob.Close() })

	require.NoError(t, alice.Push(ctx, Event{PeerID: "alice", RoomID: "r1", Type: EventJoin}))

	require.Eventually(t, func() bool {
		events, err := bob.Pull(ctx, PullQuery{RoomID: "r1", OffsetIndex: 0})
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The pusher also observes its own event echoed back (own-event
	// suppression is the core's responsibility, not the adapter's).
	require.Eventually(t, func() bool {
		events, err := alice.Pull(ctx, PullQuery{RoomID: "r1", OffsetIndex: 0})
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastAdapterCloseIsIdempotent(t *testing.T) {
	url := startTestHub(t)
	a, err := NewBroadcastAdapter(url)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.NotPanics(t, func() { _ = a.Close() })

	_, err = a.Pull(context.Background(), PullQuery{RoomID: "r1"})
	assert.ErrorIs(t, err, ErrAdapterClosed)
}
