// Package bus is the playback event bus. Host lifecycle callbacks enter
// through the On* methods, pass the debouncer, and fan out synchronously to
// subscribers in subscription order. A publish returns only after every
// handler for that event has returned, and publishes are serialized with
// respect to each other.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/domain"
	"github.com/mkaindl/offsetpilot/internal/metrics"
)

const (
	// startSettleWindow drops AV-change signals arriving right after stream
	// start, when the player's codec layer is still churning.
	startSettleWindow = 2 * time.Second

	// changeDebounceWindow drops AV-change signals following too closely on a
	// previously accepted one.
	changeDebounceWindow = time.Second
)

// Handler receives a published event. Handlers must not panic; a recovered
// panic is logged and does not block delivery to later subscribers.
type Handler func(ctx context.Context, ev domain.Event)

// Subscription is the opaque token returned by Subscribe, used to cancel it.
type Subscription struct {
	event   domain.EventType
	handler Handler
}

// playbackState is the debouncer's view of the stream lifecycle. It is only
// touched while holding the dispatch lock.
type playbackState struct {
	avStarted    bool
	startedAt    time.Time
	lastChangeAt time.Time
	suppressNext bool
}

// Bus owns subscriber fan-out and the AV-change suppression rules.
type Bus struct {
	clock clockwork.Clock

	// dispatchMu serializes publishes; subMu guards the subscriber map so
	// handlers running inside a dispatch can still subscribe or unsubscribe.
	dispatchMu sync.Mutex
	subMu      sync.Mutex
	subs       map[domain.EventType][]*Subscription

	state playbackState
}

// New creates an empty bus on the given clock.
func New(clock clockwork.Clock) *Bus {
	return &Bus{
		clock: clock,
		subs:  make(map[domain.EventType][]*Subscription),
	}
}

// Subscribe registers handler for events of type t and returns a token for
// Unsubscribe. Handlers for one event type run in subscription order.
func (b *Bus) Subscribe(t domain.EventType, handler Handler) *Subscription {
	sub := &Subscription{event: t, handler: handler}
	b.subMu.Lock()
	b.subs[t] = append(b.subs[t], sub)
	b.subMu.Unlock()
	return sub
}

// Unsubscribe removes a previously registered subscription. Unknown tokens
// are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.subMu.Lock()
	defer b.subMu.Unlock()

	list := b.subs[sub.event]
	for i, s := range list {
		if s == sub {
			b.subs[sub.event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.event]) == 0 {
		delete(b.subs, sub.event)
	}
}

// Publish delivers ev to all subscribers of its type, blocking until every
// handler has returned. Concurrent publishes are serialized; the seek and
// speed events additionally arm the suppress-next-change flag.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()
	b.publishLocked(ctx, ev)
}

func (b *Bus) publishLocked(ctx context.Context, ev domain.Event) {
	b.subMu.Lock()
	list := make([]*Subscription, len(b.subs[ev.Type]))
	copy(list, b.subs[ev.Type])
	b.subMu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	for _, sub := range list {
		b.invoke(ctx, sub, ev)
	}

	switch ev.Type {
	case domain.EventSeek, domain.EventSeekChapter, domain.EventSpeedChanged:
		b.state.suppressNext = true
	}
}

// invoke shields the dispatch loop from a panicking subscriber, so one broken
// handler cannot block delivery to the rest or unwind into the host callback.
func (b *Bus) invoke(ctx context.Context, sub *Subscription, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Subscriber panicked", "event", ev.Type, "panic", r)
		}
	}()
	sub.handler(ctx, ev)
}
