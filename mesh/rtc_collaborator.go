package mesh

import (
	"context"

	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/eventbus"
	"github.com/meshlink/meshlink/rtc"
	"github.com/meshlink/meshlink/signaling"
)

// rtcCollaborator is the subset of rtc.Session's API a PeerSession drives.
// Accepting this interface (rather than *rtc.Session directly) lets tests
// substitute a fake RTC collaborator and exercise the state machine without
// a real ICE negotiation.
type rtcCollaborator interface {
	OpenDataChannel(label string) error
	CreateOffer(ctx context.Context) (signaling.SessionDescription, error)
	AcceptOfferAndCreateAnswer(ctx context.Context, remote signaling.SessionDescription) (signaling.SessionDescription, error)
	AcceptAnswer(ctx context.Context, remote signaling.SessionDescription) error
	AddRemoteCandidate(ctx context.Context, candidate signaling.ICECandidate) error
	Send(opaqueBytes []byte) error
	Close() error
}

// rtcFactory constructs an rtcCollaborator bound to bus, the internal bus
// PeerSession listens to for RTC lifecycle events.
type rtcFactory func(cfg config.Config, bus *eventbus.Bus) (rtcCollaborator, error)

func defaultRTCFactory(cfg config.Config, bus *eventbus.Bus) (rtcCollaborator, error) {
	return rtc.NewSession(cfg, bus)
}

var _ rtcCollaborator = (*rtc.Session)(nil)
