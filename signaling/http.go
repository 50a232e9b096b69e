package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPAdapter is the client side of the HTTP long-poll adapter described in
// the wire format: POST /signaling/push, GET /signaling/pull. No REST
// client library appears anywhere in the retrieved example pack (it offers
// websocket clients, not HTTP/REST ones), so this one boundary is built on
// net/http directly — see DESIGN.md.
type HTTPAdapter struct {
	baseURL    string
	httpClient *http.Client
	rtcConfig  RTCConfig
}

var _ Adapter = (*HTTPAdapter)(nil)

// HTTPAdapterOptions configures NewHTTPAdapter.
type HTTPAdapterOptions struct {
	// BaseURL is the signaling server's address, e.g. "http://localhost:8080".
	BaseURL string
	// Timeout bounds each push/pull round trip. Defaults to 10s.
	Timeout time.Duration
	RTCConfig RTCConfig
}

// NewHTTPAdapter creates an HTTP long-poll client adapter.
func NewHTTPAdapter(opts HTTPAdapterOptions) *HTTPAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := opts.RTCConfig
	if len(cfg.ICEServers) == 0 {
		cfg = DefaultRTCConfig()
	}
	return &HTTPAdapter{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		rtcConfig:  cfg,
	}
}

type pushResponse struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	Error  string `json:"error"`
}

func (h *HTTPAdapter) Push(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("signaling: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/signaling/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
	}
	defer resp.Body.Close()

	var pr pushResponse
	_ = json.NewDecoder(resp.Body).Decode(&pr)

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: push returned %d: %s", ErrTransientSignalingFailure, resp.StatusCode, pr.Error)
		}
		return fmt.Errorf("signaling: push rejected (%d): %s", resp.StatusCode, pr.Error)
	}
	return nil
}

func (h *HTTPAdapter) Pull(ctx context.Context, query PullQuery) ([]Event, error) {
	q := url.Values{}
	if query.RoomID != "" {
		q.Set("roomId", query.RoomID)
	} else {
		q.Set("channelId", query.ChannelID)
	}
	q.Set("offsetIndex", strconv.Itoa(query.OffsetIndex))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/signaling/pull?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: pull returned %d", ErrTransientSignalingFailure, resp.StatusCode)
		}
		return nil, fmt.Errorf("signaling: pull rejected (%d)", resp.StatusCode)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
	}
	return events, nil
}

func (h *HTTPAdapter) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

func (h *HTTPAdapter) RTCConfiguration() RTCConfig {
	return h.rtcConfig
}
