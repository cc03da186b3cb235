// Package stream provides push-based live streams and the combinators the
// aggregation layer is built from.
//
// A Source blocks for as long as it is live, calling emit serially with each
// new value. It returns nil once its context is cancelled or once it has no
// more values to produce, and a non-nil error when it fails.
package stream

import (
	"context"
	"errors"
)

// ErrNoMatch is returned by First when the source completes without
// producing a matching value.
var ErrNoMatch = errors.New("stream completed without a matching value")

// Source is a live stream of T.
type Source[T any] func(ctx context.Context, emit func(T)) error

// Map transforms every value of src.
func Map[A, B any](src Source[A], fn func(A) B) Source[B] {
	return func(ctx context.Context, emit func(B)) error {
		return src(ctx, func(a A) {
			emit(fn(a))
		})
	}
}

// Just emits v once and stays open until ctx is cancelled.
func Just[T any](v T) Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		emit(v)
		<-ctx.Done()
		return nil
	}
}

// StartWith emits v before forwarding the values of src.
func StartWith[T any](v T, src Source[T]) Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		emit(v)
		return src(ctx, emit)
	}
}

// Fail returns a source that fails immediately with err.
func Fail[T any](err error) Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		return err
	}
}

// Catch swallows a failure of src. handle is called with the error and may
// emit a fallback value; the resulting stream then completes normally.
func Catch[T any](src Source[T], handle func(err error, emit func(T))) Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		err := src(ctx, emit)
		if err != nil && ctx.Err() == nil && handle != nil {
			handle(err, emit)
		}
		return nil
	}
}

// Distinct suppresses values equal to the previously emitted one.
func Distinct[T any](src Source[T], equal func(a, b T) bool) Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		var (
			last T
			seen bool
		)
		return src(ctx, func(v T) {
			if seen && equal(last, v) {
				return
			}
			last, seen = v, true
			emit(v)
		})
	}
}

// First blocks until src emits a value matching pred and returns it.
// It returns ctx's error when ctx ends first, the source's error when the
// source fails, and ErrNoMatch when the source completes without a match.
func First[T any](ctx context.Context, src Source[T], pred func(T) bool) (T, error) {
	var zero T
	inner, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		found T
		ok    bool
	)
	err := src(inner, func(v T) {
		if ok || !pred(v) {
			return
		}
		found, ok = v, true
		cancel()
	})
	if ok {
		return found, nil
	}
	if err != nil {
		return zero, err
	}
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return zero, ErrNoMatch
}

// Values runs src in a new goroutine and delivers its values on the returned
// channel. The error channel receives the source's result exactly once. Both
// channels are closed when the source returns.
func Values[T any](ctx context.Context, src Source[T]) (<-chan T, <-chan error) {
	out := make(chan T)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- src(ctx, func(v T) {
			select {
			case out <- v:
			case <-ctx.Done():
			}
		})
	}()
	return out, errc
}

// IsCanceled reports whether err is a context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
