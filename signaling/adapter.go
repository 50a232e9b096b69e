package signaling

import "context"

// ICEServer mirrors pion/webrtc's ICEServer shape so the signaling package
// has no RTC dependency of its own; rtc.Session converts it on use.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// BundlePolicy mirrors the RTCBundlePolicy enum.
type BundlePolicy string

const (
	BundlePolicyBalanced   BundlePolicy = "balanced"
	BundlePolicyMaxBundle  BundlePolicy = "max-bundle"
	BundlePolicyMaxCompat  BundlePolicy = "max-compat"
	RTCPMuxPolicyRequire   string       = "require"
)

// RTCConfig is the configuration an adapter recommends for the RTC
// collaborator: ice servers and related policy knobs.
type RTCConfig struct {
	ICEServers           []ICEServer
	ICECandidatePoolSize int
	BundlePolicy         BundlePolicy
	RTCPMuxPolicy        string
}

// PullQuery selects which log to read and from which offset.
type PullQuery struct {
	RoomID      string
	ChannelID   string
	OffsetIndex int
}

// Adapter is the abstract append-only event log the core coordination
// engine is built on. Implementations must provide FIFO-per-key ordering
// and eventual delivery: an observer's next successful Pull following a
// Push must include that event. At-least-once append is sufficient;
// downstream handlers tolerate duplicates.
type Adapter interface {
	// Push appends event to the log selected by its Key().
	Push(ctx context.Context, event Event) error

	// Pull returns events with index >= query.OffsetIndex from the log
	// selected by query.RoomID or query.ChannelID, in append order. An
	// empty result is valid and does not indicate an error.
	Pull(ctx context.Context, query PullQuery) ([]Event, error)

	// Close releases adapter-side resources. Idempotent.
	Close() error

	// RTCConfiguration returns the ICE server configuration and related
	// policy knobs this adapter recommends for the RTC collaborator.
	RTCConfiguration() RTCConfig
}

// DefaultRTCConfig is the configuration adapters fall back to when the
// caller hasn't supplied one of their own (public STUN, no TURN).
func DefaultRTCConfig() RTCConfig {
	return RTCConfig{
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		ICECandidatePoolSize: 0,
		BundlePolicy:         BundlePolicyBalanced,
		RTCPMuxPolicy:        RTCPMuxPolicyRequire,
	}
}
