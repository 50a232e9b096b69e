package mesh

import (
	"context"
	"sync"
	"time"

	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/eventbus"
	"github.com/meshlink/meshlink/signaling"
	"go.uber.org/zap"
)

// RoomMembership is a Peer's presence in one room: it runs the heartbeat
// loop, the room-scoped pull loop that discovers other members, and owns
// one PeerSession per remote member discovered so far.
type RoomMembership struct {
	RoomID      string
	LocalPeerID string

	Bus *eventbus.Bus

	adapter signaling.Adapter
	cfg     config.Config
	factory rtcFactory
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	joinObservedCh   chan struct{}
	joinObservedOnce sync.Once

	anyReadyCh   chan struct{}
	anyReadyOnce sync.Once

	mu         sync.Mutex
	sessions   map[string]*PeerSession
	pullCursor int
	left       bool
}

func newRoomMembership(parentCtx context.Context, roomID, localPeerID string, adapter signaling.Adapter, cfg config.Config, factory rtcFactory) *RoomMembership {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = defaultRTCFactory
	}

	ctx, cancel := context.WithCancel(parentCtx)

	rm := &RoomMembership{
		RoomID:         roomID,
		LocalPeerID:    localPeerID,
		Bus:            eventbus.New(logger),
		adapter:        adapter,
		cfg:            cfg,
		factory:        factory,
		logger:         logger.Named("roomMembership").With(zap.String("room", roomID)),
		ctx:            ctx,
		cancel:         cancel,
		sessions:       make(map[string]*PeerSession),
		joinObservedCh: make(chan struct{}),
		anyReadyCh:     make(chan struct{}),
	}

	rm.Bus.On(EventDataChannel, func(payload any) {
		rm.anyReadyOnce.Do(func() { close(rm.anyReadyCh) })
	})

	return rm
}

// Start pushes the initial join event and begins the heartbeat and
// room-pull loops. It blocks until the local join event has been observed
// back from the room's log, proving the join committed, or until the
// membership is torn down first. Call once.
func (rm *RoomMembership) Start() error {
	if err := rm.pushPresence(rm.ctx, signaling.EventJoin); err != nil {
		return err
	}

	rm.wg.Add(2)
	go rm.heartbeatLoop()
	go rm.pullLoop()

	select {
	case <-rm.joinObservedCh:
		return nil
	case <-rm.ctx.Done():
		return rm.ctx.Err()
	}
}

// WaitForAnyReady blocks until at least one PeerSession in the room has
// reached Ready, ctx is done, or the membership is torn down first.
func (rm *RoomMembership) WaitForAnyReady(ctx context.Context) error {
	select {
	case <-rm.anyReadyCh:
		return nil
	case <-rm.ctx.Done():
		return rm.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rm *RoomMembership) pushPresence(ctx context.Context, t signaling.EventType) error {
	return rm.adapter.Push(ctx, signaling.Event{
		PeerID: rm.LocalPeerID,
		RoomID: rm.RoomID,
		Type:   t,
	})
}

func (rm *RoomMembership) heartbeatLoop() {
	defer rm.wg.Done()

	ticker := time.NewTicker(rm.cfg.AliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			if err := rm.pushPresence(rm.ctx, signaling.EventAlive); err != nil {
				rm.logger.Warn("failed to push heartbeat", zap.Error(err))
			}
		}
	}
}

func (rm *RoomMembership) pullLoop() {
	defer rm.wg.Done()

	delay := rm.cfg.RoomPollBaseDelay

	for {
		select {
		case <-rm.ctx.Done():
			return
		default:
		}

		rm.mu.Lock()
		cursor := rm.pullCursor
		rm.mu.Unlock()

		events, err := rm.adapter.Pull(rm.ctx, signaling.PullQuery{RoomID: rm.RoomID, OffsetIndex: cursor})
		if rm.ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			rm.logger.Warn("room pull failed", zap.Error(err))
			delay = nextDelay(delay, rm.cfg.RoomPollMaxDelay, rm.cfg.RoomPollBackoffFactor)
		case len(events) == 0:
			delay = nextDelay(delay, rm.cfg.RoomPollMaxDelay, rm.cfg.RoomPollBackoffFactor)
		default:
			for _, ev := range events {
				rm.handlePresence(ev)
			}
			rm.mu.Lock()
			rm.pullCursor += len(events)
			rm.mu.Unlock()
			delay = rm.cfg.RoomPollBaseDelay
		}

		select {
		case <-rm.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (rm *RoomMembership) handlePresence(ev signaling.Event) {
	if verr := ev.Validate(); verr != nil {
		rm.logger.Warn("malformed room event skipped", zap.Error(verr))
		return
	}
	if ev.PeerID == rm.LocalPeerID {
		if ev.Type == signaling.EventJoin {
			rm.joinObservedOnce.Do(func() { close(rm.joinObservedCh) })
		}
		return
	}

	switch ev.Type {
	case signaling.EventJoin, signaling.EventAlive:
		rm.ensureSession(ev.PeerID)
		rm.Bus.Emit(EventPresence, PresenceEvent{PeerID: ev.PeerID, Type: PresenceType(ev.Type)})
	case signaling.EventLeave:
		rm.dropSession(ev.PeerID)
		rm.Bus.Emit(EventPresence, PresenceEvent{PeerID: ev.PeerID, Type: PresenceType(ev.Type)})
	}
}

func (rm *RoomMembership) ensureSession(remotePeerID string) {
	rm.mu.Lock()
	if rm.left {
		rm.mu.Unlock()
		return
	}
	if _, ok := rm.sessions[remotePeerID]; ok {
		rm.mu.Unlock()
		return
	}
	ps, err := newPeerSession(rm.ctx, rm.RoomID, rm.LocalPeerID, remotePeerID, rm.adapter, rm.cfg, rm.Bus, rm.factory)
	if err != nil {
		rm.mu.Unlock()
		rm.logger.Warn("failed to create peer session", zap.String("remote", remotePeerID), zap.Error(err))
		return
	}
	rm.sessions[remotePeerID] = ps
	rm.mu.Unlock()

	go ps.run()
}

func (rm *RoomMembership) dropSession(remotePeerID string) {
	rm.mu.Lock()
	ps, ok := rm.sessions[remotePeerID]
	if ok {
		delete(rm.sessions, remotePeerID)
	}
	rm.mu.Unlock()

	if ok {
		ps.Close()
	}
}

// Broadcast sends data to every session currently Ready, silently skipping
// peers whose channel hasn't reached Ready yet.
func (rm *RoomMembership) Broadcast(data []byte) {
	rm.mu.Lock()
	sessions := make([]*PeerSession, 0, len(rm.sessions))
	for _, ps := range rm.sessions {
		sessions = append(sessions, ps)
	}
	rm.mu.Unlock()

	for _, ps := range sessions {
		if err := ps.Send(data); err != nil {
			rm.logger.Debug("broadcast skipped unready peer", zap.String("remote", ps.RemotePeerID))
		}
	}
}

// Peers returns the remote peer ids that have a PeerSession in the session
// map, regardless of its state; a session closed by a fatal error stays
// listed until the remote's leave is observed.
func (rm *RoomMembership) Peers() []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	ids := make([]string, 0, len(rm.sessions))
	for id := range rm.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Leave pushes a leave event, tears down every PeerSession, and stops the
// heartbeat/pull loops. Idempotent.
func (rm *RoomMembership) Leave() {
	rm.mu.Lock()
	if rm.left {
		rm.mu.Unlock()
		return
	}
	rm.left = true
	sessions := make([]*PeerSession, 0, len(rm.sessions))
	for _, ps := range rm.sessions {
		sessions = append(sessions, ps)
	}
	rm.sessions = make(map[string]*PeerSession)
	rm.mu.Unlock()

	_ = rm.pushPresence(rm.ctx, signaling.EventLeave)

	rm.cancel()
	rm.wg.Wait()

	for _, ps := range sessions {
		ps.Close()
	}
}
