package mesh

// PeerSessionState is a state in the per-pair offer/answer/ICE state
// machine described in the component design.
type PeerSessionState string

const (
	StateIdle          PeerSessionState = "idle"
	StateOffering      PeerSessionState = "offering"
	StateAwaitingOffer PeerSessionState = "awaitingOffer"
	StateAnswering     PeerSessionState = "answering"
	StateConnecting    PeerSessionState = "connecting"
	StateReady         PeerSessionState = "ready"
	StateClosed        PeerSessionState = "closed"
)
