package signaling

import "errors"

// ErrTransientSignalingFailure indicates a push/pull transport error that
// the caller should retry after its current backoff delay.
var ErrTransientSignalingFailure = errors.New("signaling: transient failure")

// ErrMalformedEvent indicates an event failed shape validation on pull. The
// caller should log it and skip it, advancing its cursor by one so it is
// not retried.
var ErrMalformedEvent = errors.New("signaling: malformed event")

// ErrAdapterClosed is returned by Push/Pull after Close has been called.
var ErrAdapterClosed = errors.New("signaling: adapter closed")
