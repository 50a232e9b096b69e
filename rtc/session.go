// Package rtc is the thin collaborator wrapping one pion/webrtc peer
// connection plus a single data channel, implementing the RtcSession
// external-collaborator contract from the coordination engine's point of
// view. It unifies the teacher's previously duplicated SenderPeer/
// ReceiverPeer types into one bidirectional type: the spec's initiator-
// election rule means both roles run the same state machine, just entering
// it at a different state.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/eventbus"
	"github.com/meshlink/meshlink/signaling"
	"github.com/pion/webrtc/v4"
)

// Event names emitted on a Session's Bus.
const (
	EventLocalCandidateGenerated = "localCandidateGenerated"
	EventRemoteDataChannelOpened = "remoteDataChannelOpened"
	EventIncomingMessage         = "incomingMessage"
	EventConnectionStateChanged  = "connectionStateChanged"
	EventDataChannelStateChanged = "dataChannelStateChanged"
	EventFatalError              = "fatalError"
)

// FatalErrorKind classifies a fatalError event's payload.
type FatalErrorKind string

const (
	FatalErrorNegotiation FatalErrorKind = "negotiation"
	FatalErrorConnection  FatalErrorKind = "connection"
)

// FatalErrorEvent is the payload of a fatalError event: the ICE connection
// has entered a state the session cannot recover from.
type FatalErrorEvent struct {
	Kind FatalErrorKind
	Err  error
}

// Session wraps one PeerConnection and one DataChannel. A nil *Session is
// not usable; construct one with NewSession.
type Session struct {
	Bus *eventbus.Bus

	pc *webrtc.PeerConnection

	mu          sync.Mutex
	dataChannel *webrtc.DataChannel
	label       string
}

// NewSession creates the underlying PeerConnection from cfg's RTC
// configuration and wires up the candidate/connection-state handlers that
// must fire regardless of role.
func NewSession(cfg config.Config, bus *eventbus.Bus) (*Session, error) {
	pcConfig := toPionConfiguration(cfg)

	pc, err := webrtc.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, fmt.Errorf("rtc: new peer connection: %w", err)
	}

	s := &Session{Bus: bus, pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// end-of-gathering sentinel: the core does not forward this.
			return
		}
		s.Bus.Emit(EventLocalCandidateGenerated, candidateToWire(c))
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		s.Bus.Emit(EventConnectionStateChanged, state.String())
		if state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateClosed {
			s.Bus.Emit(EventFatalError, FatalErrorEvent{
				Kind: FatalErrorConnection,
				Err:  fmt.Errorf("rtc: ice connection state %s", state),
			})
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.mu.Lock()
		s.dataChannel = dc
		s.label = dc.Label()
		s.mu.Unlock()
		s.wireDataChannel(dc)
		s.Bus.Emit(EventRemoteDataChannelOpened, dc.Label())
	})

	return s, nil
}

func (s *Session) wireDataChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		s.Bus.Emit(EventDataChannelStateChanged, webrtc.DataChannelStateOpen.String())
	})
	dc.OnClose(func() {
		s.Bus.Emit(EventDataChannelStateChanged, webrtc.DataChannelStateClosed.String())
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.Bus.Emit(EventIncomingMessage, msg.Data)
	})
}

// OpenDataChannel creates the data channel labeled label. Only the
// initiator calls this, before CreateOffer.
func (s *Session) OpenDataChannel(label string) error {
	dc, err := s.pc.CreateDataChannel(label, nil)
	if err != nil {
		return fmt.Errorf("rtc: create data channel: %w", err)
	}
	s.mu.Lock()
	s.dataChannel = dc
	s.label = label
	s.mu.Unlock()
	s.wireDataChannel(dc)
	return nil
}

// CreateOffer creates and sets the local description, returning it for the
// caller to push as an sdpOffer event.
func (s *Session) CreateOffer(ctx context.Context) (signaling.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("rtc: create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("rtc: set local description: %w", err)
	}
	return signaling.SessionDescription{Type: "offer", SDP: offer.SDP}, nil
}

// AcceptOfferAndCreateAnswer sets the remote offer, creates an answer, and
// sets it as the local description, returning it for the caller to push as
// an sdpAnswer event.
func (s *Session) AcceptOfferAndCreateAnswer(ctx context.Context, remote signaling.SessionDescription) (signaling.SessionDescription, error) {
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  remote.SDP,
	}); err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("rtc: set remote offer: %w", err)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("rtc: create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return signaling.SessionDescription{}, fmt.Errorf("rtc: set local answer: %w", err)
	}
	return signaling.SessionDescription{Type: "answer", SDP: answer.SDP}, nil
}

// AcceptAnswer sets the remote answer on an initiator's connection.
func (s *Session) AcceptAnswer(ctx context.Context, remote signaling.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  remote.SDP,
	}); err != nil {
		return fmt.Errorf("rtc: set remote answer: %w", err)
	}
	return nil
}

// AddRemoteCandidate adds a remote ICE candidate. It is safe to call before
// the remote description is set; pion buffers such candidates internally,
// so the core never needs to buffer or reject them itself.
func (s *Session) AddRemoteCandidate(ctx context.Context, candidate signaling.ICECandidate) error {
	init, err := candidateFromWire(candidate)
	if err != nil {
		return fmt.Errorf("rtc: parse candidate: %w", err)
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("rtc: add candidate: %w", err)
	}
	return nil
}

// Send writes opaqueBytes to the data channel. The caller (PeerSession) is
// responsible for only calling this once the channel is open.
func (s *Session) Send(opaqueBytes []byte) error {
	s.mu.Lock()
	dc := s.dataChannel
	s.mu.Unlock()
	if dc == nil {
		return fmt.Errorf("rtc: data channel not yet open")
	}
	return dc.Send(opaqueBytes)
}

// Close tears down the data channel and peer connection. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	dc := s.dataChannel
	s.dataChannel = nil
	s.mu.Unlock()

	if dc != nil {
		_ = dc.Close()
	}
	return s.pc.Close()
}
