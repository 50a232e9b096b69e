package mesh

import (
	"context"
	"sync"
	"time"

	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/eventbus"
	"github.com/meshlink/meshlink/rtc"
	"github.com/meshlink/meshlink/signaling"
)

// fakeRTC is a test double for rtcCollaborator. It records calls and, when
// autoOpen is set, emits a dataChannelStateChanged "open" event shortly
// after a successful AcceptAnswer/AcceptOfferAndCreateAnswer, standing in
// for pion's asynchronous ICE/SCTP handshake completing.
type fakeRTC struct {
	bus      *eventbus.Bus
	autoOpen bool

	mu              sync.Mutex
	opened          bool
	offersCreated   int
	answersAccepted int
	candidates      []signaling.ICECandidate
	sentMessages    [][]byte
	closed          bool

	createOfferErr   error
	acceptOfferErr   error
	acceptAnswerErr  error
	addCandidateErr  error
	sendErr          error
}

func (f *fakeRTC) OpenDataChannel(label string) error {
	f.mu.Lock()
	f.opened = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRTC) CreateOffer(ctx context.Context) (signaling.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOfferErr != nil {
		return signaling.SessionDescription{}, f.createOfferErr
	}
	f.offersCreated++
	return signaling.SessionDescription{Type: "offer", SDP: "fake-offer"}, nil
}

func (f *fakeRTC) AcceptOfferAndCreateAnswer(ctx context.Context, remote signaling.SessionDescription) (signaling.SessionDescription, error) {
	f.mu.Lock()
	if f.acceptOfferErr != nil {
		defer f.mu.Unlock()
		return signaling.SessionDescription{}, f.acceptOfferErr
	}
	f.mu.Unlock()
	f.triggerOpenAsync()
	return signaling.SessionDescription{Type: "answer", SDP: "fake-answer"}, nil
}

func (f *fakeRTC) AcceptAnswer(ctx context.Context, remote signaling.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptAnswerErr != nil {
		return f.acceptAnswerErr
	}
	f.answersAccepted++
	f.triggerOpenAsyncLocked()
	return nil
}

func (f *fakeRTC) AddRemoteCandidate(ctx context.Context, candidate signaling.ICECandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addCandidateErr != nil {
		return f.addCandidateErr
	}
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakeRTC) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentMessages = append(f.sentMessages, data)
	return nil
}

func (f *fakeRTC) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRTC) triggerOpenAsync() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggerOpenAsyncLocked()
}

func (f *fakeRTC) triggerOpenAsyncLocked() {
	if !f.autoOpen {
		return
	}
	bus := f.bus
	go func() {
		time.Sleep(15 * time.Millisecond)
		bus.Emit(rtc.EventDataChannelStateChanged, "open")
	}()
}

var _ rtcCollaborator = (*fakeRTC)(nil)

// singleFakeFactory returns an rtcFactory that always hands back the same
// pre-built fake, for tests that need to reach into it after run() starts.
func singleFakeFactory(f *fakeRTC) rtcFactory {
	return func(cfg config.Config, bus *eventbus.Bus) (rtcCollaborator, error) {
		f.bus = bus
		return f, nil
	}
}

// autoFakeFactory builds a fresh autoOpen fake per call, for tests that
// don't need to inspect individual instances.
func autoFakeFactory() rtcFactory {
	return func(cfg config.Config, bus *eventbus.Bus) (rtcCollaborator, error) {
		return &fakeRTC{bus: bus, autoOpen: true}, nil
	}
}
