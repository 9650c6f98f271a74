package boot

import (
	"context"
	"fmt"
)

// Op is a pending asynchronous operation. It completes exactly once.
type Op[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on its own goroutine and returns the pending operation.
// A panic in fn completes the operation with an error wrapping ErrPanic.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Op[T] {
	op := &Op[T]{done: make(chan struct{})}
	go func() {
		defer close(op.done)
		op.value, op.err = protect(func() (T, error) { return fn(ctx) })
	}()
	return op
}

// Completed returns an operation that has already finished.
func Completed[T any](value T, err error) *Op[T] {
	op := &Op[T]{done: make(chan struct{}), value: value, err: err}
	close(op.done)
	return op
}

// Done returns a channel closed when the operation finishes.
func (o *Op[T]) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation finishes and returns its result.
// This is the blocking adapter used by the interactive path.
func (o *Op[T]) Wait() (T, error) {
	<-o.done
	return o.value, o.err
}

// protect runs fn, converting a panic into an error.
func protect[T any](fn func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, err = zero, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

// protectErr is protect for calls that only return an error.
func protectErr(fn func() error) error {
	_, err := protect(func() (struct{}, error) { return struct{}{}, fn() })
	return err
}
