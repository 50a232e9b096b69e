package mesh

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by PeerSession.Send when the data channel isn't
// open yet. The session's state is left unchanged.
var ErrNotReady = errors.New("mesh: session not ready")

// ErrInvalidArgument is returned, wrapping channelid.ErrInvalidPeerID, when a
// PeerSession is created for identical or empty peer ids, and by Peer.Join
// once the peer has been closed. Close methods return no error and never
// report it.
var ErrInvalidArgument = errors.New("mesh: invalid argument")

// ErrCancelled marks an operation that raced with shutdown. It is never
// surfaced to application code as an error event; callers that see it
// should treat the operation as a quiet no-op.
var ErrCancelled = errors.New("mesh: cancelled")

// ErrRtcNegotiationFailure wraps an offer/answer/candidate rejection from
// the RTC collaborator. The owning PeerSession transitions to Closed and
// emits an upward "error" event.
var ErrRtcNegotiationFailure = errors.New("mesh: rtc negotiation failure")

// SessionError annotates an error with the operation and remote peer it
// happened on, following the teacher's TransferError wrapping pattern.
type SessionError struct {
	Op             string
	RemotePeerID   string
	Err            error
}

func (e *SessionError) Error() string {
	if e.RemotePeerID != "" {
		return fmt.Sprintf("%s (peer=%s): %v", e.Op, e.RemotePeerID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newSessionError(op, remotePeerID string, err error) *SessionError {
	return &SessionError{Op: op, RemotePeerID: remotePeerID, Err: err}
}
