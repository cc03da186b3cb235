package stream

import (
	"context"
	"sync"
)

// Relay is a Source fed by hand, letting one live subscription feed
// several consumers. Each subscriber receives the latest published value
// on start and every later one. A subscriber that falls behind only sees
// the newest value.
type Relay[T any] struct {
	mu     sync.Mutex
	latest T
	has    bool
	subs   map[chan T]struct{}
}

// NewRelay creates a Relay with no value yet
func NewRelay[T any]() *Relay[T] {
	return &Relay[T]{subs: make(map[chan T]struct{})}
}

// Publish hands v to every current subscriber without blocking
func (r *Relay[T]) Publish(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest, r.has = v, true
	for ch := range r.subs {
		// Only Publish sends, under r.mu, so the slot is free after the drain.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Source subscribes to the relay. It stays open until ctx is cancelled.
func (r *Relay[T]) Source() Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		ch := make(chan T, 1)
		r.mu.Lock()
		if r.has {
			ch <- r.latest
		}
		r.subs[ch] = struct{}{}
		r.mu.Unlock()

		defer func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case v := <-ch:
				emit(v)
			}
		}
	}
}
