// Package views holds the live state behind each screen. A view is
// initialized with a scope, subscribes to the streams that scope needs and
// folds their values into one state struct that callers read or watch.
//
// Re-initializing a view with the scope it already has does nothing. A new
// scope cancels every subscription of the old one, and waits for them to
// stop, before the new ones start.
package views

import (
	"context"
	"sync"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// ErrNotInitialized is returned by actions on a view that has no scope yet
var ErrNotInitialized = errors.Validation("view is not initialized")

// holder owns the state of a view and the subscriptions feeding it
type holder[S any] struct {
	log     logger.Logger
	initial S

	mu       sync.Mutex
	state    S
	watchers map[int]func(S)
	nextID   int

	// emitMu keeps watcher calls in update order
	emitMu sync.Mutex

	lifeMu sync.Mutex
	scope  any
	active bool
	life   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func newHolder[S any](log logger.Logger, initial S) *holder[S] {
	return &holder[S]{
		log:      log,
		initial:  initial,
		state:    initial,
		watchers: make(map[int]func(S)),
	}
}

// State returns a snapshot of the current state
func (h *holder[S]) State() S {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Watch calls fn with the current state and again after every change until
// the returned function is called. fn must not block or call back into the
// view.
func (h *holder[S]) Watch(fn func(S)) (unwatch func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = fn
	s := h.state
	h.emitMu.Lock()
	h.mu.Unlock()
	fn(s)
	h.emitMu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}

// update applies fn to the state and notifies watchers
func (h *holder[S]) update(fn func(*S)) {
	h.apply(nil, fn)
}

// apply is update that skips fn once ctx has ended, so a superseded
// subscription cannot write into its successor's state
func (h *holder[S]) apply(ctx context.Context, fn func(*S)) {
	h.mu.Lock()
	if ctx != nil && ctx.Err() != nil {
		h.mu.Unlock()
		return
	}
	fn(&h.state)
	s := h.state
	watchers := make([]func(S), 0, len(h.watchers))
	for _, w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.emitMu.Lock()
	h.mu.Unlock()

	for _, w := range watchers {
		w(s)
	}
	h.emitMu.Unlock()
}

// begin switches the view to scope. It reports false, and leaves every
// subscription running, when scope equals the current scope. Otherwise the
// previous subscriptions are stopped, the state is reset and a fresh
// context for the new subscriptions is returned.
func (h *holder[S]) begin(scope any) (context.Context, bool) {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	if h.closed || (h.active && h.scope == scope) {
		return nil, false
	}

	h.stopLocked()
	h.scope = scope
	h.active = true

	ctx, cancel := context.WithCancel(context.Background())
	h.life = ctx
	h.cancel = cancel
	h.update(func(s *S) { *s = h.initial })
	return ctx, true
}

// currentScope returns the scope of the last successful begin
func (h *holder[S]) currentScope() any {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	return h.scope
}

// session returns the current scope with the context of its
// subscriptions. Actions write their results with apply under that context
// so that a result arriving after the scope changed is dropped.
func (h *holder[S]) session() (any, context.Context) {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	return h.scope, h.life
}

func (h *holder[S]) stopLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.wg.Wait()
}

// Close stops every subscription. The view cannot be initialized again.
func (h *holder[S]) Close() {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	h.closed = true
	h.stopLocked()
}

// follow runs src until ctx ends, folding its values into the state with
// apply. A failure is passed to fail, when set; a nil fail logs and drops
// it, which is the policy for non-essential subscriptions.
func follow[S, T any](ctx context.Context, h *holder[S], name string, src stream.Source[T], apply func(*S, T), fail func(*S, error)) {
	if ctx.Err() != nil {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := src(ctx, func(v T) {
			h.apply(ctx, func(s *S) { apply(s, v) })
		})
		if err == nil || ctx.Err() != nil {
			return
		}
		if fail == nil {
			h.log.Warn("Subscription failed", "subscription", name, "error", err)
			return
		}
		h.log.Error("Subscription failed", "subscription", name, "error", err)
		h.apply(ctx, func(s *S) { fail(s, err) })
	}()
}
