// Package eventbus is a small typed publish/subscribe bus used by
// RoomMembership, PeerSession, and RtcSession to surface lifecycle events
// (presence, message, receivedSignal, sentSignal, dataChannel,
// peerConnection, error) to application code.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler receives a payload emitted under some event name. Handlers run
// synchronously, in registration order, on the emitting goroutine.
type Handler func(payload any)

// Subscription is returned by Bus.On. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	bus  *Bus
	name string
	id   uint64
}

func (s *subscription) Unsubscribe() {
	s.bus.remove(s.name, s.id)
}

// Bus is a typed, synchronous pub/sub used internally across meshlink.
// A zero-value Bus is ready to use.
type Bus struct {
	mu       sync.Mutex
	handlers map[string]map[uint64]Handler
	nextID   uint64
	logger   *zap.Logger
}

// New creates a ready-to-use Bus. logger may be nil, in which case a no-op
// logger is used.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string]map[uint64]Handler),
		logger:   logger,
	}
}

// Options configure a single subscription.
type Options struct {
	// Context, if non-nil, links the subscription's lifetime to ctx: when
	// ctx is done the subscription is unsubscribed automatically.
	Context context.Context
}

// On registers handler under name and returns a disposable Subscription.
func (b *Bus) On(name string, handler Handler, opts ...Options) Subscription {
	b.mu.Lock()
	if b.handlers == nil {
		b.handlers = make(map[string]map[uint64]Handler)
	}
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[uint64]Handler)
	}
	b.nextID++
	id := b.nextID
	b.handlers[name][id] = handler
	b.mu.Unlock()

	sub := &subscription{bus: b, name: name, id: id}

	for _, o := range opts {
		if o.Context != nil {
			ctx := o.Context
			go func() {
				<-ctx.Done()
				sub.Unsubscribe()
			}()
		}
	}

	return sub
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.handlers[name]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.handlers, name)
		}
	}
}

// Emit invokes every handler registered under name, in registration order.
// A handler that panics is recovered and logged; delivery to the remaining
// handlers continues.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	set := b.handlers[name]
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	// Deterministic-ish order: sort by id (registration order).
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, set[id])
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.safeInvoke(name, h, payload)
	}
}

func (b *Bus) safeInvoke(name string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger := b.logger
			if logger == nil {
				logger = zap.NewNop()
			}
			logger.Error("eventbus handler panicked",
				zap.String("event", name),
				zap.Any("recover", r),
			)
		}
	}()
	h(payload)
}
