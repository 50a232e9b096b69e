package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshlink/meshlink/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouterPushPullRoundTrip(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	push := func(body any) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/signaling/push", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := push(signaling.Event{PeerID: "alice", RoomID: "r1", Type: signaling.EventJoin})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = push(signaling.Event{PeerID: "bob", RoomID: "r1", Type: signaling.EventJoin})
	require.Equal(t, http.StatusOK, rec.Code)

	pullReq := httptest.NewRequest(http.MethodGet, "/signaling/pull?roomId=r1&offsetIndex=0", nil)
	pullRec := httptest.NewRecorder()
	router.ServeHTTP(pullRec, pullReq)
	require.Equal(t, http.StatusOK, pullRec.Code)

	var events []signaling.Event
	require.NoError(t, json.Unmarshal(pullRec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].PeerID)
	assert.Equal(t, "bob", events[1].PeerID)
}

func TestRouterPushRejectsMalformedEvent(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	b, _ := json.Marshal(signaling.Event{RoomID: "r1", Type: signaling.EventJoin})
	req := httptest.NewRequest(http.MethodPost, "/signaling/push", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterPullRejectsMissingKey(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/signaling/pull?offsetIndex=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterPullRejectsBothKeys(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/signaling/pull?roomId=r1&channelId=c1&offsetIndex=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterPullRejectsInvalidOffset(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/signaling/pull?roomId=r1&offsetIndex=not-a-number", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterPullDefaultsOffsetWhenOmitted(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/signaling/pull?roomId=r1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterHealthEndpoint(t *testing.T) {
	adapter := signaling.NewMemoryAdapter()
	defer adapter.Close()
	router := newRouter(adapter, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
