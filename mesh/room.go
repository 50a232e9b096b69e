package mesh

// Room identifies a signaling scope by its room id only. It holds no
// adapter; the adapter presence and per-channel events go through is the
// one the owning Peer was created with.
type Room struct {
	ID string
}
