// Package mesh is the coordination engine: it turns a signaling adapter and
// a local identity into rooms of peers that discover each other, elect an
// initiator per pair, negotiate a WebRTC data channel, and exchange opaque
// byte messages once connected.
package mesh

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/signaling"
	"go.uber.org/zap"
)

// Peer is a local identity that can join any number of rooms over one
// signaling adapter.
type Peer struct {
	ID string

	adapter signaling.Adapter
	cfg     config.Config
	factory rtcFactory
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	memberships map[string]*RoomMembership
	closed      bool
}

// PeerOption configures NewPeer.
type PeerOption func(*Peer)

// WithPeerID overrides the generated peer id.
func WithPeerID(id string) PeerOption {
	return func(p *Peer) { p.ID = id }
}

// NewPeer creates a Peer bound to adapter and cfg. If no id is supplied via
// WithPeerID, a random one is generated.
func NewPeer(adapter signaling.Adapter, cfg config.Config, opts ...PeerOption) *Peer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Peer{
		ID:          uuid.NewString(),
		adapter:     adapter,
		cfg:         cfg,
		factory:     defaultRTCFactory,
		logger:      logger.Named("peer"),
		ctx:         ctx,
		cancel:      cancel,
		memberships: make(map[string]*RoomMembership),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Join returns this peer's membership in roomID, creating and starting it
// on first call. Subsequent calls for the same room return the existing
// membership.
func (p *Peer) Join(roomID string) (*RoomMembership, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrInvalidArgument
	}
	if rm, ok := p.memberships[roomID]; ok {
		p.mu.Unlock()
		return rm, nil
	}
	rm := newRoomMembership(p.ctx, roomID, p.ID, p.adapter, p.cfg, p.factory)
	p.memberships[roomID] = rm
	p.mu.Unlock()

	if err := rm.Start(); err != nil {
		p.mu.Lock()
		delete(p.memberships, roomID)
		p.mu.Unlock()
		return nil, err
	}
	return rm, nil
}

// Leave tears down this peer's membership in roomID, if any. Idempotent.
func (p *Peer) Leave(roomID string) {
	p.mu.Lock()
	rm, ok := p.memberships[roomID]
	if ok {
		delete(p.memberships, roomID)
	}
	p.mu.Unlock()

	if ok {
		rm.Leave()
	}
}

// Close tears down every room membership and releases the peer's
// background goroutines. Idempotent.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	memberships := make([]*RoomMembership, 0, len(p.memberships))
	for _, rm := range p.memberships {
		memberships = append(memberships, rm)
	}
	p.memberships = make(map[string]*RoomMembership)
	p.mu.Unlock()

	for _, rm := range memberships {
		rm.Leave()
	}
	p.cancel()
}
