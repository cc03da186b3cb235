package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// feed is a hand-driven source for tests.
type feed[T any] struct {
	values chan T
	errs   chan error
	subs   atomic.Int32
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{values: make(chan T), errs: make(chan error)}
}

func (f *feed[T]) source() Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		f.subs.Add(1)
		defer f.subs.Add(-1)
		for {
			select {
			case <-ctx.Done():
				return nil
			case v := <-f.values:
				emit(v)
			case err := <-f.errs:
				return err
			}
		}
	}
}

func (f *feed[T]) send(t *testing.T, v T) {
	t.Helper()
	select {
	case f.values <- v:
	case <-time.After(waitFor):
		t.Fatalf("feed not subscribed, could not send %v", v)
	}
}

func (f *feed[T]) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case f.errs <- err:
	case <-time.After(waitFor):
		t.Fatal("feed not subscribed, could not fail")
	}
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func assertQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, _ := Values(ctx, Map(Just(21), func(v int) int { return v * 2 }))
	assert.Equal(t, 42, next(t, out))
}

func TestStartWith(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFeed[int]()
	out, _ := Values(ctx, StartWith(0, f.source()))

	assert.Equal(t, 0, next(t, out))
	f.send(t, 7)
	assert.Equal(t, 7, next(t, out))
}

func TestDistinct_SuppressesRepeats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFeed[string]()
	out, _ := Values(ctx, Distinct(f.source(), func(a, b string) bool { return a == b }))

	f.send(t, "a")
	assert.Equal(t, "a", next(t, out))
	f.send(t, "a")
	f.send(t, "b")
	assert.Equal(t, "b", next(t, out))
}

func TestCatch_EmitsFallbackAndCompletes(t *testing.T) {
	var got []int
	var caught error
	err := Catch(Fail[int](errors.New("boom")), func(err error, emit func(int)) {
		caught = err
		emit(-1)
	})(context.Background(), func(v int) { got = append(got, v) })

	require.NoError(t, err)
	assert.EqualError(t, caught, "boom")
	assert.Equal(t, []int{-1}, got)
}

func TestFirst_ReturnsMatchingValue(t *testing.T) {
	f := newFeed[int]()
	go func() {
		f.values <- 1
		f.values <- 2
	}()

	v, err := First(context.Background(), f.source(), func(v int) bool { return v >= 2 })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestFirst_Deadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := First(ctx, Just(1), func(v int) bool { return v == 2 })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsCanceled(err))
}

func TestFirst_SourceFailure(t *testing.T) {
	_, err := First(context.Background(), Fail[int](errors.New("offline")), func(int) bool { return true })
	assert.EqualError(t, err, "offline")
}

func TestFirst_CompletedWithoutMatch(t *testing.T) {
	src := Source[int](func(ctx context.Context, emit func(int)) error {
		emit(1)
		return nil
	})
	_, err := First(context.Background(), src, func(v int) bool { return v == 2 })
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestSwitchMap_FollowsLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outer := newFeed[string]()
	inners := map[string]*feed[int]{"a": newFeed[int](), "b": newFeed[int]()}

	out, _ := Values(ctx, SwitchMap(outer.source(), func(k string) Source[int] {
		return inners[k].source()
	}))

	outer.send(t, "a")
	inners["a"].send(t, 1)
	assert.Equal(t, 1, next(t, out))

	outer.send(t, "b")
	assert.Eventually(t, func() bool { return inners["a"].subs.Load() == 0 }, waitFor, time.Millisecond)
	inners["b"].send(t, 2)
	assert.Equal(t, 2, next(t, out))
}

func TestSwitchMap_InnerFailureFailsStream(t *testing.T) {
	outer := newFeed[string]()
	inner := newFeed[int]()

	done := make(chan error, 1)
	go func() {
		done <- SwitchMap(outer.source(), func(string) Source[int] { return inner.source() })(context.Background(), func(int) {})
	}()

	outer.send(t, "x")
	inner.fail(t, errors.New("inner broke"))
	assert.EqualError(t, next(t, done), "inner broke")
}

func TestCombine_EmptyKeysEmitImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := Combine(Just([]string{}), func(string) Source[int] { return Just(1) }, nil)
	out, _ := Values(ctx, src)

	assert.Empty(t, next(t, out))
}

func TestCombine_WaitsForEveryMember(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feeds := map[string]*feed[int]{"a": newFeed[int](), "b": newFeed[int]()}
	src := Combine(Just([]string{"a", "b", "a"}), func(k string) Source[int] { return feeds[k].source() }, nil)
	out, _ := Values(ctx, src)

	feeds["a"].send(t, 1)
	assertQuiet(t, out)

	feeds["b"].send(t, 2)
	assert.Equal(t, []int{1, 2}, next(t, out))

	feeds["a"].send(t, 3)
	assert.Equal(t, []int{3, 2}, next(t, out))
}

func TestCombine_ReconcilesMembership(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys := newFeed[[]string]()
	feeds := map[string]*feed[int]{"a": newFeed[int](), "b": newFeed[int]()}
	var opened sync.Map
	src := Combine(keys.source(), func(k string) Source[int] {
		n, _ := opened.LoadOrStore(k, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		return feeds[k].source()
	}, nil)
	out, _ := Values(ctx, src)

	keys.send(t, []string{"a", "b"})
	feeds["a"].send(t, 1)
	feeds["b"].send(t, 2)
	assert.Equal(t, []int{1, 2}, next(t, out))

	// Removing a drops its value and its subscription.
	keys.send(t, []string{"b"})
	assert.Equal(t, []int{2}, next(t, out))
	assert.Eventually(t, func() bool { return feeds["a"].subs.Load() == 0 }, waitFor, time.Millisecond)

	// Unchanged key list does not resubscribe or re-emit.
	keys.send(t, []string{"b"})
	assertQuiet(t, out)

	// Re-adding a starts a fresh member that must settle again.
	keys.send(t, []string{"a", "b"})
	assertQuiet(t, out)
	feeds["a"].send(t, 5)
	assert.Equal(t, []int{5, 2}, next(t, out))

	n, _ := opened.Load("a")
	assert.Equal(t, int32(2), n.(*atomic.Int32).Load())
	n, _ = opened.Load("b")
	assert.Equal(t, int32(1), n.(*atomic.Int32).Load())
}

func TestCombine_MemberFailureIsIsolated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feeds := map[string]*feed[int]{"a": newFeed[int](), "b": newFeed[int]()}
	failed := make(chan string, 1)
	src := Combine(Just([]string{"a", "b"}), func(k string) Source[int] { return feeds[k].source() }, func(k string, err error) {
		failed <- k
	})
	out, _ := Values(ctx, src)

	feeds["b"].send(t, 2)
	feeds["a"].fail(t, errors.New("permission denied"))
	assert.Equal(t, "a", next(t, failed))
	assert.Equal(t, []int{2}, next(t, out))

	feeds["b"].send(t, 4)
	assert.Equal(t, []int{4}, next(t, out))
}

func TestCombine_KeyFailureFailsStream(t *testing.T) {
	src := Combine(Fail[[]string](errors.New("index unavailable")), func(string) Source[int] { return Just(1) }, nil)
	err := src(context.Background(), func([]int) {})
	assert.EqualError(t, err, "index unavailable")
}

func TestCombine_CancellationStopsMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	f := newFeed[int]()
	done := make(chan error, 1)
	go func() {
		done <- Combine(Just([]string{"a"}), func(string) Source[int] { return f.source() }, nil)(ctx, func([]int) {})
	}()

	assert.Eventually(t, func() bool { return f.subs.Load() == 1 }, waitFor, time.Millisecond)
	cancel()
	require.NoError(t, next(t, done))
	assert.Equal(t, int32(0), f.subs.Load())
}

func (r *Relay[T]) subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func waitSubscribers[T any](t *testing.T, r *Relay[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.subscribers() == n }, waitFor, time.Millisecond)
}

func TestRelay_ReplaysLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRelay[int]()
	r.Publish(1)
	r.Publish(2)

	out, _ := Values(ctx, r.Source())
	assert.Equal(t, 2, next(t, out))

	r.Publish(3)
	assert.Equal(t, 3, next(t, out))
}

func TestRelay_FansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRelay[string]()
	a, _ := Values(ctx, r.Source())
	b, _ := Values(ctx, r.Source())
	waitSubscribers(t, r, 2)

	r.Publish("x")
	assert.Equal(t, "x", next(t, a))
	assert.Equal(t, "x", next(t, b))
}

func TestRelay_CancelUnsubscribes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRelay[int]()
	_, errc := Values(ctx, r.Source())
	waitSubscribers(t, r, 1)

	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, 0, r.subscribers())
	r.Publish(1)
}
