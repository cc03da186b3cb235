package stream

import "context"

type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *running) stop() {
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *running) wait() {
	if r != nil {
		<-r.done
	}
}

// SwitchMap maps every value of src to an inner stream and forwards the
// values of the most recent inner stream only. The previous inner stream has
// returned before the next one is started, so no value of a superseded inner
// stream is forwarded after the switch. A failing inner stream fails the
// whole stream.
func SwitchMap[A, B any](src Source[A], fn func(A) Source[B]) Source[B] {
	return func(parent context.Context, emit func(B)) error {
		ctx, cancel := context.WithCancelCause(parent)
		defer cancel(nil)

		var inner *running
		err := src(ctx, func(a A) {
			inner.stop()

			innerCtx, innerCancel := context.WithCancel(ctx)
			r := &running{cancel: innerCancel, done: make(chan struct{})}
			next := fn(a)
			go func() {
				defer close(r.done)
				if err := next(innerCtx, emit); err != nil && innerCtx.Err() == nil {
					cancel(err)
				}
			}()
			inner = r
		})
		if err == nil && ctx.Err() == nil {
			inner.wait()
		}
		inner.stop()

		if err != nil {
			return err
		}
		if ctx.Err() != nil && parent.Err() == nil {
			return context.Cause(ctx)
		}
		return nil
	}
}
