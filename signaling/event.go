package signaling

// EventType enumerates the signaling event variants carried by a log.
type EventType string

const (
	EventJoin         EventType = "join"
	EventAlive        EventType = "alive"
	EventLeave        EventType = "leave"
	EventSDPOffer     EventType = "sdpOffer"
	EventSDPAnswer    EventType = "sdpAnswer"
	EventICECandidate EventType = "iceCandidate"
	EventSDPRestart   EventType = "sdpRestart"
)

// IsRoomScoped reports whether events of this type key off RoomID rather
// than ChannelID.
func (t EventType) IsRoomScoped() bool {
	switch t {
	case EventJoin, EventAlive, EventLeave:
		return true
	default:
		return false
	}
}

// SessionDescription is an opaque SDP blob plus its type ("offer"/"answer"),
// mirroring what the RtcSession collaborator produces and consumes.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is an opaque candidate descriptor, passed through verbatim to
// the RtcSession collaborator.
type ICECandidate map[string]any

// Event is the wire-level signaling event. Exactly one of RoomID/ChannelID
// is set, matching the variant in EventType. Index is the event's position
// in the log it was pulled from; MemoryAdapter and RedisAdapter set it on
// the events they return. It is not carried in JSON, so events pulled
// through HTTPAdapter or BroadcastAdapter have Index 0. It is not meaningful
// on events passed to Push.
type Event struct {
	PeerID    string              `json:"peerId"`
	RoomID    string              `json:"roomId,omitempty"`
	ChannelID string              `json:"channelId,omitempty"`
	Type      EventType           `json:"type"`
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate ICECandidate        `json:"candidate,omitempty"`
	Index     int                 `json:"-"`
}

// Key returns the log key (room id or channel id) this event is stored
// under.
func (e Event) Key() string {
	if e.Type.IsRoomScoped() {
		return e.RoomID
	}
	return e.ChannelID
}

// Validate reports MalformedEvent if the event doesn't conform to the
// "exactly one key, peerId always present" invariant.
func (e Event) Validate() error {
	if e.PeerID == "" {
		return ErrMalformedEvent
	}
	hasRoom := e.RoomID != ""
	hasChannel := e.ChannelID != ""
	if hasRoom == hasChannel {
		// both set or neither set
		return ErrMalformedEvent
	}
	if e.Type.IsRoomScoped() != hasRoom {
		return ErrMalformedEvent
	}
	return nil
}
