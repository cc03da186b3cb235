package stream

import (
	"context"
	"slices"
	"sync"
)

type eventKind int

const (
	eventValue eventKind = iota
	eventFailed
	eventDone
)

type member[T any] struct {
	cancel  context.CancelFunc
	value   T
	has     bool
	settled bool
	failed  bool
	done    bool
}

type event[K comparable, T any] struct {
	key   K
	m     *member[T]
	kind  eventKind
	value T
	err   error
}

// Combine subscribes to open(k) for every key of the latest key list and
// emits the latest value of every member, in key order.
//
// Every key list reconciles the member set before anything else is
// forwarded: removed members are cancelled and their values dropped, added
// members are started, unchanged members keep running. Values that a removed
// member produced before it stopped are discarded.
//
// An emission happens once every current member has settled, meaning it has
// emitted, failed or completed. An empty key list emits an empty slice at
// once. A failed member is reported to onErr and left out of later
// emissions; its siblings keep running. A failure of the key stream fails
// the combined stream.
func Combine[K comparable, T any](keys Source[[]K], open func(K) Source[T], onErr func(K, error)) Source[[]T] {
	return func(parent context.Context, emit func([]T)) error {
		ctx, cancel := context.WithCancel(parent)
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
		}()

		keyCh := make(chan []K)
		keysDone := make(chan error, 1)
		events := make(chan event[K, T])

		wg.Add(1)
		go func() {
			defer wg.Done()
			keysDone <- keys(ctx, func(ks []K) {
				select {
				case keyCh <- ks:
				case <-ctx.Done():
				}
			})
		}()

		start := func(k K) *member[T] {
			mctx, mcancel := context.WithCancel(ctx)
			m := &member[T]{cancel: mcancel}
			send := func(ev event[K, T]) {
				select {
				case events <- ev:
				case <-mctx.Done():
				}
			}
			src := open(k)
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := src(mctx, func(v T) {
					send(event[K, T]{key: k, m: m, kind: eventValue, value: v})
				})
				if mctx.Err() != nil {
					return
				}
				if err != nil {
					send(event[K, T]{key: k, m: m, kind: eventFailed, err: err})
					return
				}
				send(event[K, T]{key: k, m: m, kind: eventDone})
			}()
			return m
		}

		var (
			order        []K
			members      = map[K]*member[T]{}
			emitted      bool
			keysFinished bool
			keysResult   = (<-chan error)(keysDone)
		)

		live := func() int {
			n := 0
			for _, m := range members {
				if !m.failed && !m.done {
					n++
				}
			}
			return n
		}

		flush := func() {
			out := make([]T, 0, len(order))
			for _, k := range order {
				m := members[k]
				if !m.settled {
					return
				}
				if m.has && !m.failed {
					out = append(out, m.value)
				}
			}
			emitted = true
			emit(out)
		}

		for {
			select {
			case <-ctx.Done():
				return nil

			case ks := <-keyCh:
				ks = dedupe(ks)
				if emitted && slices.Equal(ks, order) {
					continue
				}
				wanted := make(map[K]struct{}, len(ks))
				for _, k := range ks {
					wanted[k] = struct{}{}
				}
				for k, m := range members {
					if _, ok := wanted[k]; !ok {
						m.cancel()
						delete(members, k)
					}
				}
				for _, k := range ks {
					if _, ok := members[k]; !ok {
						members[k] = start(k)
					}
				}
				order = ks
				flush()

			case err := <-keysResult:
				keysResult = nil
				if err != nil {
					return err
				}
				keysFinished = true
				if live() == 0 {
					return nil
				}

			case ev := <-events:
				m, ok := members[ev.key]
				if !ok || m != ev.m {
					continue
				}
				switch ev.kind {
				case eventValue:
					m.value, m.has, m.settled = ev.value, true, true
				case eventFailed:
					var zero T
					m.value, m.has, m.settled, m.failed = zero, false, true, true
					if onErr != nil {
						onErr(ev.key, ev.err)
					}
				case eventDone:
					m.settled, m.done = true, true
				}
				flush()
				if keysFinished && live() == 0 {
					return nil
				}
			}
		}
	}
}

func dedupe[K comparable](ks []K) []K {
	seen := make(map[K]struct{}, len(ks))
	out := make([]K, 0, len(ks))
	for _, k := range ks {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
