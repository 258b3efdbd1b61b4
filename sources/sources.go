// Package sources adapts data to the lazy sequences a join reads. File
// backed sources open their file on the first pull and close it when the
// sequence ends or the consumer stops.
package sources

import (
	"context"
	"iter"
)

// Record is a row of named columns.
type Record map[string]interface{}

func Slice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, i := range items {
			if !yield(i, nil) {
				return
			}
		}
	}
}

// Seq adapts a sequence that cannot fail.
func Seq[T any](seq iter.Seq[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for i := range seq {
			if !yield(i, nil) {
				return
			}
		}
	}
}

// Func pulls from next until it reports no more elements or fails.
func Func[T any](next func() (T, bool, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			t, ok, err := next()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(t, nil) {
				return
			}
		}
	}
}

// Chan reads ch until it is closed. Cancelling ctx ends the sequence with
// ctx.Err().
func Chan[T any](ctx context.Context, ch <-chan T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			select {
			case <-ctx.Done():
				var zero T
				yield(zero, ctx.Err())
				return
			case t, ok := <-ch:
				if !ok || !yield(t, nil) {
					return
				}
			}
		}
	}
}

// Failed yields err and nothing else.
func Failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
