package signaling

import (
	"context"
	"sync"
)

// MemoryAdapter is a process-local, mutex-guarded append-only log keyed by
// room id or channel id. It is the in-memory adapter from the component
// design: single process, zero network, used for tests and local demos.
type MemoryAdapter struct {
	mu        sync.Mutex
	logs      map[string][]Event
	closed    bool
	rtcConfig RTCConfig
}

var _ Adapter = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates a ready-to-use in-memory adapter. If rtcConfig is
// the zero value, DefaultRTCConfig is used.
func NewMemoryAdapter(rtcConfig ...RTCConfig) *MemoryAdapter {
	cfg := DefaultRTCConfig()
	if len(rtcConfig) > 0 {
		cfg = rtcConfig[0]
	}
	return &MemoryAdapter{
		logs:      make(map[string][]Event),
		rtcConfig: cfg,
	}
}

func (m *MemoryAdapter) Push(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrAdapterClosed
	}

	key := event.Key()
	event.Index = len(m.logs[key])
	m.logs[key] = append(m.logs[key], event)
	return nil
}

func (m *MemoryAdapter) Pull(ctx context.Context, query PullQuery) ([]Event, error) {
	key := query.RoomID
	if key == "" {
		key = query.ChannelID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrAdapterClosed
	}

	log := m.logs[key]
	if query.OffsetIndex >= len(log) {
		return nil, nil
	}

	out := make([]Event, len(log)-query.OffsetIndex)
	copy(out, log[query.OffsetIndex:])
	return out, nil
}

func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryAdapter) RTCConfiguration() RTCConfig {
	return m.rtcConfig
}
