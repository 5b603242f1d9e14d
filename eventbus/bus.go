// Package eventbus is the in-process fan-out of case events. Local code and
// the messenger both publish here, so listeners react the same way to local
// and remote changes.
package eventbus

import (
	"sort"
	"sync"
	"sync/atomic"

	"casehub/core"
	"casehub/util/goroutine"

	"go.uber.org/zap"
)

// Subscriber receives published events. It runs on the publishing goroutine
// and must hand slow work to its own worker.
type Subscriber func(event core.Event)

// SubscriptionID identifies a subscription for removal
type SubscriptionID uint64

type subscription struct {
	fn    Subscriber
	types map[string]struct{}
}

func (s subscription) wants(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Bus delivers events to subscribers synchronously, in subscription order
type Bus struct {
	logger *zap.SugaredLogger

	mu   sync.RWMutex
	subs map[SubscriptionID]subscription
	next atomic.Uint64
}

// New creates an empty bus
func New(logger *zap.SugaredLogger) *Bus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[SubscriptionID]subscription),
	}
}

// Subscribe registers fn for the given event types, or for every event when
// no types are given
func (b *Bus) Subscribe(fn Subscriber, eventTypes ...string) SubscriptionID {
	sub := subscription{fn: fn}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}

	id := SubscriptionID(b.next.Add(1))
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription and reports whether it existed
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	return true
}

// Publish delivers event to every matching subscriber. A panicking
// subscriber is logged and skipped.
func (b *Bus) Publish(event core.Event) {
	if event == nil {
		return
	}
	eventType := event.EventType()

	b.mu.RLock()
	ids := make([]SubscriptionID, 0, len(b.subs))
	for id, sub := range b.subs {
		if sub.wants(eventType) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Subscriber, len(ids))
	for i, id := range ids {
		fns[i] = b.subs[id].fn
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		goroutine.SafeCall("event-subscriber:"+eventType, b.logger, func() { fn(event) })
	}
}
