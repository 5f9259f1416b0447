package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// Bus is a small, typed, in-process event bus.
//
// Subscriptions are typed via generics. Publish applies backpressure and
// blocks until every subscriber accepted the event or ctx ends; Offer never
// blocks and drops the event for subscribers whose buffer is full. Close
// closes every subscription channel.
//
// The bus is not durable; internal/journal persists the events that matter.
type Bus struct {
	mu        sync.RWMutex
	subs      map[reflect.Type]map[uint64]*subscriber
	nextID    atomic.Uint64
	isClosed  atomic.Bool
	closeOnce sync.Once
}

type subscriber struct {
	// mu is held for reading while sending so the channel is never closed
	// under an in-flight send.
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	deliver   func(ctx context.Context, evt any, block bool) (bool, error)
	closeCh   func()
}

func (s *subscriber) send(ctx context.Context, evt any, block bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.done:
		return false, nil
	default:
	}
	return s.deliver(ctx, evt, block)
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closeCh()
		s.mu.Unlock()
	})
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[reflect.Type]map[uint64]*subscriber),
	}
}

// Subscribe registers a subscription for events of type T.
//
// If T is an interface, published events whose concrete type implements T will be delivered.
// For concrete T, events are delivered only when the concrete type matches exactly.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	if b.isClosed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscriber{
		done:    make(chan struct{}),
		closeCh: func() { close(ch) },
	}
	sub.deliver = func(ctx context.Context, evt any, block bool) (bool, error) {
		v, ok := evt.(T)
		if !ok {
			return false, ferrors.InternalError("event type mismatch").
				WithContext("expected", eventType.String()).
				WithContext("actual", reflect.TypeOf(evt).String()).
				Build()
		}
		if !block {
			select {
			case ch <- v:
				return true, nil
			default:
				return false, nil
			}
		}
		select {
		case ch <- v:
			return true, nil
		case <-sub.done:
			return false, nil
		case <-ctx.Done():
			return false, ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
				WithContext("event_type", eventType.String()).
				Build()
		}
	}

	var unsubOnce sync.Once
	unsubscribe := func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()
			sub.close()
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed.Load() {
		sub.close()
		return ch, func() {}
	}

	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][id] = sub

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers for events of type T.
//
// This is primarily intended for tests and diagnostics.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}

	eventType := reflect.TypeFor[T]()

	b.mu.RLock()
	defer b.mu.RUnlock()

	if typeSubs, ok := b.subs[eventType]; ok {
		return len(typeSubs)
	}
	return 0
}

func (b *Bus) targets(evt any) []*subscriber {
	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	defer b.mu.RUnlock()
	var targets []*subscriber
	for subType, typeSubs := range b.subs {
		match := subType == evtType
		if !match && subType.Kind() == reflect.Interface {
			match = evtType.Implements(subType)
		}
		if !match {
			continue
		}
		for _, s := range typeSubs {
			targets = append(targets, s)
		}
	}
	return targets
}

// Publish delivers an event to all matching subscribers.
//
// Backpressure: Publish blocks until each subscriber has accepted the event, or the
// provided context is canceled.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	if b.isClosed.Load() {
		return ferrors.DaemonError("event bus is closed").Build()
	}

	for _, s := range b.targets(evt) {
		if _, err := s.send(ctx, evt, true); err != nil {
			return err
		}
	}
	return nil
}

// Offer delivers evt to every matching subscriber that has buffer room and
// returns how many subscribers missed it. It never blocks, so it is safe on
// paths that must not wait for consumers.
func (b *Bus) Offer(evt any) (dropped int) {
	if b == nil || evt == nil || b.isClosed.Load() {
		return 0
	}
	for _, s := range b.targets(evt) {
		ok, err := s.send(context.Background(), evt, false)
		if err != nil || !ok {
			dropped++
		}
	}
	return dropped
}

// Close closes the bus and all subscription channels.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.isClosed.Store(true)

		b.mu.Lock()
		var toClose []*subscriber
		for _, typeSubs := range b.subs {
			for _, s := range typeSubs {
				toClose = append(toClose, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range toClose {
			s.close()
		}
	})
}
