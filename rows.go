package streamjoin

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/pickme-go/log/v2"
	joinErrors "github.com/pickme-go/stream-join/errors"
	"github.com/pickme-go/stream-join/internal/join"
	"github.com/pickme-go/traceable-context"
)

type Stats = join.Stats

type evaluation struct {
	id      uuid.UUID
	name    string
	typ     Type
	logger  log.Logger
	metrics *Metrics
	handler joinErrors.Handler
}

type source[Y any] interface {
	Run(ctx context.Context) iter.Seq2[Y, error]
	Stats() join.Stats
}

// Rows is a cursor over the output of one join evaluation.
//
//	for rows.Next() {
//		v := rows.Value()
//	}
//	if err := rows.Err(); err != nil {
//	}
//
// Nothing is read from the sources before the first call to Next. Rows is
// not safe for concurrent use.
type Rows[Y any] struct {
	ctx      context.Context
	trace    context.Context
	src      source[Y]
	eval     evaluation
	next     func() (Y, error, bool)
	stop     func()
	current  Y
	err      error
	begin    time.Time
	finished bool
	closed   bool

	errYielded bool
}

func newRows[Y any](ctx context.Context, src source[Y], eval evaluation) *Rows[Y] {
	if ctx == nil {
		ctx = context.Background()
	}

	return &Rows[Y]{
		ctx:   ctx,
		trace: traceable_context.WithUUID(eval.id),
		src:   src,
		eval:  eval,
	}
}

// ID identifies the evaluation in logs.
func (r *Rows[Y]) ID() uuid.UUID {
	return r.eval.id
}

// Next advances to the next output. It returns false once the join is
// exhausted, failed or was closed.
func (r *Rows[Y]) Next() bool {
	if r.closed || r.finished {
		return false
	}

	if r.next == nil {
		r.begin = time.Now()
		r.next, r.stop = iter.Pull2(r.src.Run(r.ctx))
	}

	y, err, ok := r.next()
	if !ok {
		r.stop()
		r.finish(nil)
		return false
	}

	if err != nil {
		var zero Y
		r.current = zero
		r.err = err
		r.stop()
		r.finish(err)
		return false
	}

	r.current = y
	return true
}

// Value returns the output Next advanced to.
func (r *Rows[Y]) Value() Y {
	return r.current
}

// Err returns the error that ended the evaluation, if any.
func (r *Rows[Y]) Err() error {
	return r.err
}

// Close abandons the evaluation. It is safe to call more than once.
func (r *Rows[Y]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.stop != nil {
		r.stop()
	}

	if !r.finished {
		r.finish(nil)
	}

	return nil
}

// All adapts Rows to a range loop. Breaking out of the loop closes Rows.
// An error is yielded as the last element of the first range over a failed
// Rows only; Err keeps reporting it.
func (r *Rows[Y]) All() iter.Seq2[Y, error] {
	return func(yield func(Y, error) bool) {
		defer r.Close()

		for r.Next() {
			if !yield(r.Value(), nil) {
				return
			}
		}

		if r.err != nil && !r.errYielded {
			r.errYielded = true
			var zero Y
			yield(zero, r.err)
		}
	}
}

// Collect drains Rows. The outputs produced before a failure are returned
// along with the error.
func (r *Rows[Y]) Collect() ([]Y, error) {
	var out []Y
	for y, err := range r.All() {
		if err != nil {
			return out, err
		}
		out = append(out, y)
	}

	return out, nil
}

func (r *Rows[Y]) Stats() Stats {
	return r.src.Stats()
}

func (r *Rows[Y]) finish(err error) {
	r.finished = true

	status := `ok`
	switch {
	case err != nil:
		status = `error`
	case r.closed:
		status = `abandoned`
	}

	stats := r.src.Stats()
	r.eval.metrics.record(r.eval.name, r.eval.typ, status, stats)

	if err == nil {
		var took time.Duration
		if !r.begin.IsZero() {
			took = time.Since(r.begin)
		}
		r.eval.logger.DebugContext(r.trace, fmt.Sprintf(`%s join %s [%s] - emitted %d rows from %d left elements, %d right elements in %d buckets in %s`,
			r.eval.typ, status, r.eval.id, stats.Emitted, stats.LeftPulled, stats.RightIndexed, stats.Buckets, took))
		return
	}

	je, ok := joinErrors.As(err)
	if !ok {
		je = joinErrors.New(joinErrors.Source, joinErrors.NoSide, err)
	}
	r.eval.handler.Handle(r.trace, je)
}
