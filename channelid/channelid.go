// Package channelid derives the deterministic pair-channel id and the
// initiator-election rule both sides of a channel compute independently.
package channelid

import "errors"

// ErrInvalidPeerID is returned when the two ids passed to Compute are equal
// or either is empty.
var ErrInvalidPeerID = errors.New("channelid: invalid peer id")

// Compute returns the channel id for the unordered pair (a, b) inside room,
// as "{roomID}:{lo}-{hi}" with lo < hi in codepoint order. Both participants
// computing Compute(room, a, b) and Compute(room, b, a) get the same result.
func Compute(roomID, a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrInvalidPeerID
	}
	if a == b {
		return "", ErrInvalidPeerID
	}

	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}

	return roomID + ":" + lo + "-" + hi, nil
}

// IsInitiator reports whether localPeerID is the initiator of the channel
// between localPeerID and remotePeerID: the peer whose id sorts first is the
// initiator and sends the SDP offer; the other is the responder.
func IsInitiator(localPeerID, remotePeerID string) (bool, error) {
	if localPeerID == "" || remotePeerID == "" {
		return false, ErrInvalidPeerID
	}
	if localPeerID == remotePeerID {
		return false, ErrInvalidPeerID
	}
	return localPeerID < remotePeerID, nil
}
