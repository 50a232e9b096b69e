package signaling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapterFIFOPerKey(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter()

	require.NoError(t, a.Push(ctx, Event{PeerID: "alice", RoomID: "r1", Type: EventJoin}))
	require.NoError(t, a.Push(ctx, Event{PeerID: "bob", RoomID: "r1", Type: EventJoin}))
	require.NoError(t, a.Push(ctx, Event{PeerID: "alice", ChannelID: "r1:alice-bob", Type: EventSDPOffer,
		SDP: &SessionDescription{Type: "offer", SDP: "v=0"}}))

	roomEvents, err := a.Pull(ctx, PullQuery{RoomID: "r1", OffsetIndex: 0})
	require.NoError(t, err)
	require.Len(t, roomEvents, 2)
	assert.Equal(t, "alice", roomEvents[0].PeerID)
	assert.Equal(t, "bob", roomEvents[1].PeerID)

	more, err := a.Pull(ctx, PullQuery{RoomID: "r1", OffsetIndex: 2})
	require.NoError(t, err)
	assert.Empty(t, more)

	chanEvents, err := a.Pull(ctx, PullQuery{ChannelID: "r1:alice-bob", OffsetIndex: 0})
	require.NoError(t, err)
	require.Len(t, chanEvents, 1)
	assert.Equal(t, EventSDPOffer, chanEvents[0].Type)
}

func TestMemoryAdapterRejectsMalformedEvent(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter()

	err := a.Push(ctx, Event{RoomID: "r1", Type: EventJoin}) // missing PeerID
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = a.Push(ctx, Event{PeerID: "alice", Type: EventJoin}) // missing both keys
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = a.Push(ctx, Event{PeerID: "alice", RoomID: "r1", ChannelID: "c1", Type: EventJoin}) // both keys
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestMemoryAdapterCloseIsIdempotentAndRejectsFurtherUse(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter()

	require.NoError(t, a.Close())
	assert.NotPanics(t, func() { _ = a.Close() })

	err := a.Push(ctx, Event{PeerID: "alice", RoomID: "r1", Type: EventJoin})
	assert.ErrorIs(t, err, ErrAdapterClosed)
}
