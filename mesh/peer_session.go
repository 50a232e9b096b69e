package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meshlink/meshlink/channelid"
	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/eventbus"
	"github.com/meshlink/meshlink/rtc"
	"github.com/meshlink/meshlink/signaling"
	"go.uber.org/zap"
)

// PeerSession drives the offer/answer/ICE state machine for exactly one
// remote peer within one room. Its channel id and initiator role are fixed
// for the session's lifetime, computed once from the two peer ids.
type PeerSession struct {
	RoomID       string
	ChannelID    string
	LocalPeerID  string
	RemotePeerID string

	isInitiator bool

	adapter  signaling.Adapter
	cfg      config.Config
	upstream *eventbus.Bus
	rtcBus   *eventbus.Bus
	factory  rtcFactory
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}

	mu         sync.Mutex
	state      PeerSessionState
	pullCursor int
	rtcSess    rtcCollaborator
}

func newPeerSession(
	parentCtx context.Context,
	roomID, localPeerID, remotePeerID string,
	adapter signaling.Adapter,
	cfg config.Config,
	upstream *eventbus.Bus,
	factory rtcFactory,
) (*PeerSession, error) {
	chID, err := channelid.Compute(roomID, localPeerID, remotePeerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	initiator, err := channelid.IsInitiator(localPeerID, remotePeerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parentCtx)

	if factory == nil {
		factory = defaultRTCFactory
	}

	ps := &PeerSession{
		RoomID:       roomID,
		ChannelID:    chID,
		LocalPeerID:  localPeerID,
		RemotePeerID: remotePeerID,
		isInitiator:  initiator,
		adapter:      adapter,
		cfg:          cfg,
		upstream:     upstream,
		rtcBus:       eventbus.New(logger),
		factory:      factory,
		logger:       logger.Named("peerSession").With(zap.String("remote", remotePeerID)),
		ctx:          ctx,
		cancel:       cancel,
		doneCh:       make(chan struct{}),
		state:        StateIdle,
	}
	return ps, nil
}

// State returns the session's current state. Safe for concurrent use.
func (ps *PeerSession) State() PeerSessionState {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.state
}

// run enters the session's initial state and then drives its pull loop
// until the session's context is cancelled or a fatal error closes it. Call
// it in its own goroutine.
func (ps *PeerSession) run() {
	defer func() {
		ps.cleanup()
		close(ps.doneCh)
	}()

	if err := ps.enterInitialState(ps.ctx); err != nil {
		ps.logger.Warn("failed to enter initial state", zap.Error(err))
		ps.upstream.Emit(EventError, newSessionError("negotiate", ps.RemotePeerID, err))
		return
	}

	ps.pullLoop(ps.ctx)
}

func (ps *PeerSession) enterInitialState(ctx context.Context) error {
	sess, err := ps.factory(ps.cfg, ps.rtcBus)
	if err != nil {
		return fmt.Errorf("create rtc session: %w", err)
	}

	ps.mu.Lock()
	ps.rtcSess = sess
	ps.mu.Unlock()

	ps.subscribeRTCEvents()
	ps.upstream.Emit(EventPeerConnection, PeerConnectionEvent{RemotePeerID: ps.RemotePeerID, ChannelID: ps.ChannelID})

	if !ps.isInitiator {
		ps.mu.Lock()
		ps.state = StateAwaitingOffer
		ps.mu.Unlock()
		return nil
	}

	if err := sess.OpenDataChannel("default"); err != nil {
		return fmt.Errorf("open data channel: %w", err)
	}

	offer, err := sess.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	ps.mu.Lock()
	ps.state = StateOffering
	ps.mu.Unlock()

	if err := ps.pushEvent(ctx, signaling.EventSDPOffer, &offer, nil); err != nil {
		return fmt.Errorf("push offer: %w", err)
	}
	ps.upstream.Emit(EventSentSignal, SignalEvent{RemotePeerID: ps.RemotePeerID, ChannelID: ps.ChannelID, Type: signaling.EventSDPOffer})
	return nil
}

func (ps *PeerSession) subscribeRTCEvents() {
	ps.rtcBus.On(rtc.EventLocalCandidateGenerated, func(payload any) {
		candidate, ok := payload.(signaling.ICECandidate)
		if !ok {
			return
		}
		if err := ps.pushEvent(ps.ctx, signaling.EventICECandidate, nil, candidate); err != nil {
			ps.logger.Warn("failed to push local candidate", zap.Error(err))
			return
		}
		ps.upstream.Emit(EventSentSignal, SignalEvent{RemotePeerID: ps.RemotePeerID, ChannelID: ps.ChannelID, Type: signaling.EventICECandidate})
	})

	ps.rtcBus.On(rtc.EventDataChannelStateChanged, func(payload any) {
		state, _ := payload.(string)
		if state != "open" {
			return
		}
		ps.mu.Lock()
		becameReady := ps.state == StateConnecting
		if becameReady {
			ps.state = StateReady
		}
		ps.mu.Unlock()
		if !becameReady {
			return
		}
		ps.upstream.Emit(EventDataChannel, DataChannelEvent{RemotePeerID: ps.RemotePeerID, ChannelID: ps.ChannelID})
	})

	ps.rtcBus.On(rtc.EventIncomingMessage, func(payload any) {
		data, ok := payload.([]byte)
		if !ok {
			return
		}
		ps.mu.Lock()
		ready := ps.state == StateReady
		ps.mu.Unlock()
		if !ready {
			return
		}
		ps.upstream.Emit(EventMessage, MessageEvent{RemotePeerID: ps.RemotePeerID, Data: data})
	})

	ps.rtcBus.On(rtc.EventRemoteDataChannelOpened, func(payload any) {
		label, _ := payload.(string)
		ps.logger.Debug("remote data channel opened", zap.String("label", label))
	})

	ps.rtcBus.On(rtc.EventConnectionStateChanged, func(payload any) {
		state, _ := payload.(string)
		if state != "failed" && state != "closed" {
			return
		}
		ps.failSession("connection", fmt.Errorf("connection state %s", state))
	})

	ps.rtcBus.On(rtc.EventFatalError, func(payload any) {
		fe, ok := payload.(rtc.FatalErrorEvent)
		if !ok {
			return
		}
		ps.failSession(string(fe.Kind), fe.Err)
	})
}

func (ps *PeerSession) pushEvent(ctx context.Context, t signaling.EventType, sdp *signaling.SessionDescription, candidate signaling.ICECandidate) error {
	return ps.adapter.Push(ctx, signaling.Event{
		PeerID:    ps.LocalPeerID,
		ChannelID: ps.ChannelID,
		Type:      t,
		SDP:       sdp,
		Candidate: candidate,
	})
}

func (ps *PeerSession) pullLoop(ctx context.Context) {
	delay := ps.cfg.ChannelPollBaseDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ps.mu.Lock()
		cursor := ps.pullCursor
		ps.mu.Unlock()

		events, err := ps.adapter.Pull(ctx, signaling.PullQuery{ChannelID: ps.ChannelID, OffsetIndex: cursor})
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			ps.logger.Warn("channel pull failed", zap.Error(err))
			delay = nextDelay(delay, ps.cfg.ChannelPollMaxDelay, ps.cfg.ChannelPollBackoffFactor)
		case len(events) == 0:
			delay = nextDelay(delay, ps.cfg.ChannelPollMaxDelay, ps.cfg.ChannelPollBackoffFactor)
		default:
			for _, ev := range events {
				ps.handleIncoming(ctx, ev)
			}
			ps.mu.Lock()
			ps.pullCursor += len(events)
			ps.mu.Unlock()
			delay = ps.cfg.ChannelPollBaseDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (ps *PeerSession) handleIncoming(ctx context.Context, ev signaling.Event) {
	if verr := ev.Validate(); verr != nil {
		ps.logger.Warn("malformed channel event skipped", zap.Error(verr))
		return
	}
	if ev.PeerID == ps.LocalPeerID {
		return
	}

	ps.upstream.Emit(EventReceivedSignal, SignalEvent{RemotePeerID: ps.RemotePeerID, ChannelID: ps.ChannelID, Type: ev.Type})

	switch ev.Type {
	case signaling.EventSDPOffer:
		ps.handleRemoteOffer(ctx, ev)
	case signaling.EventSDPAnswer:
		ps.handleRemoteAnswer(ctx, ev)
	case signaling.EventICECandidate:
		ps.handleRemoteCandidate(ctx, ev)
	case signaling.EventSDPRestart:
		ps.logger.Debug("sdpRestart observed, ignoring")
	}
}

// handleRemoteOffer answers an observed offer. It also handles a repeated
// offer from the same remote (last-writer-wins) by re-answering, since a
// responder may see a fresher offer before its first answer lands.
func (ps *PeerSession) handleRemoteOffer(ctx context.Context, ev signaling.Event) {
	if ps.isInitiator || ev.SDP == nil {
		return
	}

	ps.mu.Lock()
	state := ps.state
	sess := ps.rtcSess
	ps.mu.Unlock()

	if state != StateAwaitingOffer && state != StateAnswering && state != StateConnecting {
		return
	}
	if sess == nil {
		return
	}

	ps.mu.Lock()
	ps.state = StateAnswering
	ps.mu.Unlock()

	answer, err := sess.AcceptOfferAndCreateAnswer(ctx, *ev.SDP)
	if err != nil {
		ps.failNegotiation(err)
		return
	}

	if err := ps.pushEvent(ctx, signaling.EventSDPAnswer, &answer, nil); err != nil {
		ps.failNegotiation(err)
		return
	}
	ps.upstream.Emit(EventSentSignal, SignalEvent{RemotePeerID: ps.RemotePeerID, ChannelID: ps.ChannelID, Type: signaling.EventSDPAnswer})

	ps.mu.Lock()
	ps.state = StateConnecting
	ps.mu.Unlock()
}

func (ps *PeerSession) handleRemoteAnswer(ctx context.Context, ev signaling.Event) {
	if !ps.isInitiator || ev.SDP == nil {
		return
	}

	ps.mu.Lock()
	state := ps.state
	sess := ps.rtcSess
	ps.mu.Unlock()

	if state != StateOffering || sess == nil {
		return
	}

	if err := sess.AcceptAnswer(ctx, *ev.SDP); err != nil {
		ps.failNegotiation(err)
		return
	}

	ps.mu.Lock()
	ps.state = StateConnecting
	ps.mu.Unlock()
}

func (ps *PeerSession) handleRemoteCandidate(ctx context.Context, ev signaling.Event) {
	if ev.Candidate == nil {
		return
	}

	ps.mu.Lock()
	sess := ps.rtcSess
	closed := ps.state == StateClosed
	ps.mu.Unlock()

	if closed || sess == nil {
		return
	}

	if err := sess.AddRemoteCandidate(ctx, ev.Candidate); err != nil {
		ps.logger.Warn("failed to add remote candidate", zap.Error(err))
	}
}

func (ps *PeerSession) failNegotiation(err error) {
	ps.failSession("negotiate", err)
}

// failSession tears the session down and emits an upward "error" event
// tagged with op, the reason the session could no longer continue. Safe to
// call more than once; cleanup is idempotent.
func (ps *PeerSession) failSession(op string, err error) {
	ps.mu.Lock()
	alreadyClosed := ps.state == StateClosed
	ps.mu.Unlock()
	if alreadyClosed {
		return
	}
	ps.cleanup()
	ps.upstream.Emit(EventError, newSessionError(op, ps.RemotePeerID, fmt.Errorf("%w: %v", ErrRtcNegotiationFailure, err)))
}

// Send writes data to the channel. Requires the channel to be Ready.
func (ps *PeerSession) Send(data []byte) error {
	ps.mu.Lock()
	ready := ps.state == StateReady
	sess := ps.rtcSess
	ps.mu.Unlock()

	if !ready || sess == nil {
		return ErrNotReady
	}
	return sess.Send(data)
}

func (ps *PeerSession) cleanup() {
	ps.mu.Lock()
	if ps.state == StateClosed {
		ps.mu.Unlock()
		return
	}
	ps.state = StateClosed
	sess := ps.rtcSess
	cancel := ps.cancel
	ps.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		_ = sess.Close()
	}
}

// Close tears down the session and blocks until its pull loop has fully
// exited. Idempotent.
func (ps *PeerSession) Close() {
	ps.cleanup()
	<-ps.doneCh
}
