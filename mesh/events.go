package mesh

import "github.com/meshlink/meshlink/signaling"

// Upward event names emitted on a RoomMembership's Bus.
const (
	EventPresence = "presence"
	EventMessage  = "message"
	EventError    = "error"

	EventReceivedSignal = "receivedSignal"
	EventSentSignal     = "sentSignal"
	EventDataChannel    = "dataChannel"
	EventPeerConnection = "peerConnection"
)

// PresenceType mirrors the room presence event types.
type PresenceType string

const (
	PresenceJoin  PresenceType = PresenceType(signaling.EventJoin)
	PresenceAlive PresenceType = PresenceType(signaling.EventAlive)
	PresenceLeave PresenceType = PresenceType(signaling.EventLeave)
)

// PresenceEvent is the payload of an "presence" event.
type PresenceEvent struct {
	PeerID string
	Type   PresenceType
}

// MessageEvent is the payload of a "message" event.
type MessageEvent struct {
	RemotePeerID string
	Data         []byte
}

// DataChannelEvent is the payload of a "dataChannel" event, emitted once a
// PeerSession's channel reaches Ready.
type DataChannelEvent struct {
	RemotePeerID string
	ChannelID    string
}

// PeerConnectionEvent is the payload of a "peerConnection" event, emitted
// once a PeerSession's underlying RTC collaborator has been constructed.
type PeerConnectionEvent struct {
	RemotePeerID string
	ChannelID    string
}

// SignalEvent is the payload of "receivedSignal"/"sentSignal" events.
type SignalEvent struct {
	RemotePeerID string
	ChannelID    string
	Type         signaling.EventType
}
