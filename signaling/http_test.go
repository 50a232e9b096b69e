package signaling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHTTPServer is a minimal stand-in for cmd/signalserver's gin routes,
// just enough to exercise HTTPAdapter's request shapes against the wire
// contract in spec.md section 6.
func newTestHTTPServer(t *testing.T, backing *MemoryAdapter) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/signaling/push", func(w http.ResponseWriter, r *http.Request) {
		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(pushResponse{Error: "bad request"})
			return
		}
		if err := backing.Push(r.Context(), event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(pushResponse{Error: err.Error()})
			return
		}
		json.NewEncoder(w).Encode(pushResponse{Index: event.Index, Length: event.Index + 1})
	})

	mux.HandleFunc("/signaling/pull", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		channelID := r.URL.Query().Get("channelId")
		offset, _ := strconv.Atoi(r.URL.Query().Get("offsetIndex"))

		events, err := backing.Pull(r.Context(), PullQuery{RoomID: roomID, ChannelID: channelID, OffsetIndex: offset})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []Event{}
		}
		json.NewEncoder(w).Encode(events)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPAdapterPushPullRoundTrip(t *testing.T) {
	backing := NewMemoryAdapter()
	srv := newTestHTTPServer(t, backing)

	client := NewHTTPAdapter(HTTPAdapterOptions{BaseURL: srv.URL})
	ctx := t.Context()

	require.NoError(t, client.Push(ctx, Event{PeerID: "alice", RoomID: "r1", Type: EventJoin}))
	require.NoError(t, client.Push(ctx, Event{PeerID: "bob", RoomID: "r1", Type: EventJoin}))

	events, err := client.Pull(ctx, PullQuery{RoomID: "r1", OffsetIndex: 0})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].PeerID)
	assert.Equal(t, "bob", events[1].PeerID)
}

func TestHTTPAdapterPushRejectsMalformedEvent(t *testing.T) {
	backing := NewMemoryAdapter()
	srv := newTestHTTPServer(t, backing)
	client := NewHTTPAdapter(HTTPAdapterOptions{BaseURL: srv.URL})

	err := client.Push(t.Context(), Event{RoomID: "r1", Type: EventJoin})
	assert.Error(t, err)
}
