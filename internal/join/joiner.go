package join

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	joinErrors "github.com/pickme-go/stream-join/errors"
)

type State int

const (
	StateIdle State = iota
	StateBuildingIndex
	StateDrainingLeft
	StateDrainingUnmatchedRight
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return `IDLE`
	case StateBuildingIndex:
		return `BUILDING_INDEX`
	case StateDrainingLeft:
		return `DRAINING_LEFT`
	case StateDrainingUnmatchedRight:
		return `DRAINING_UNMATCHED_RIGHT`
	case StateDone:
		return `DONE`
	}

	return fmt.Sprintf(`State(%d)`, int(s))
}

type Config[L, R any, K comparable] struct {
	Left     iter.Seq2[L, error]
	LeftKey  KeyFunc[L, K]
	Right    iter.Seq2[R, error]
	RightKey KeyFunc[R, K]
	// SizeHint pre-sizes the key index.
	SizeHint int
	Logger   log.Logger
}

type Stats struct {
	LeftPulled      int
	RightIndexed    int
	Buckets         int
	Emitted         int
	UnmatchedGroups int
	IndexBuildTime  time.Duration
}

// Joiner drives one join evaluation. It is single use and not safe for
// concurrent use.
type Joiner[L, R any, K comparable, Y any] struct {
	left     iter.Seq2[L, error]
	leftKey  KeyFunc[L, K]
	right    iter.Seq2[R, error]
	rightKey KeyFunc[R, K]
	sizeHint int
	strategy *Strategy[L, R, Y]
	logger   log.Logger
	state    State
	stats    Stats
}

func NewJoiner[L, R any, K comparable, Y any](c Config[L, R, K], strategy *Strategy[L, R, Y]) *Joiner[L, R, K, Y] {
	logger := c.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	return &Joiner[L, R, K, Y]{
		left:     c.Left,
		leftKey:  c.LeftKey,
		right:    c.Right,
		rightKey: c.RightKey,
		sizeHint: c.SizeHint,
		strategy: strategy,
		logger:   logger,
	}
}

func (j *Joiner[L, R, K, Y]) State() State {
	return j.state
}

func (j *Joiner[L, R, K, Y]) Stats() Stats {
	return j.stats
}

func (j *Joiner[L, R, K, Y]) transit(ctx context.Context, to State) {
	j.logger.DebugContext(ctx, fmt.Sprintf(`%s join [%s -> %s]`, j.strategy.Type(), j.state, to))
	j.state = to
}

// Run returns the output of the join. The right side is indexed on the first
// pull; the left side is pulled one element at a time as outputs are
// consumed. The sequence can be consumed once: iterating it again, or after
// it was abandoned, yields nothing and does not touch the sources.
func (j *Joiner[L, R, K, Y]) Run(ctx context.Context) iter.Seq2[Y, error] {
	return func(yield func(Y, error) bool) {
		if j.state != StateIdle {
			return
		}

		defer func() {
			if j.state != StateDone {
				j.transit(ctx, StateDone)
			}
		}()

		emit := func(y Y, err error) bool {
			if err == nil {
				j.stats.Emitted++
			}
			return yield(y, err)
		}

		var zero Y

		j.transit(ctx, StateBuildingIndex)
		if err := ctx.Err(); err != nil {
			yield(zero, joinErrors.New(joinErrors.Source, joinErrors.NoSide, err))
			return
		}

		begin := time.Now()
		index, err := BuildIndex(j.right, j.rightKey, j.sizeHint)
		j.stats.IndexBuildTime = time.Since(begin)
		if err != nil {
			yield(zero, err)
			return
		}
		j.stats.RightIndexed = index.Size()
		j.stats.Buckets = index.Len()

		j.transit(ctx, StateDrainingLeft)
		for l, err := range j.left {
			if err != nil {
				yield(zero, joinErrors.New(joinErrors.Source, joinErrors.Left,
					errors.WithPrevious(err, `cannot read left element`)))
				return
			}
			j.stats.LeftPulled++

			k, err := j.leftKey(l)
			if err != nil {
				yield(zero, joinErrors.New(joinErrors.KeyExtraction, joinErrors.Left,
					errors.WithPrevious(err, fmt.Sprintf(`key function failed on left element #%d`, j.stats.LeftPulled-1))))
				return
			}

			if err := index.Hashable(k); err != nil {
				yield(zero, joinErrors.New(joinErrors.KeyExtraction, joinErrors.Left, err))
				return
			}

			if !j.strategy.Emit(l, index.Lookup(k), emit) {
				return
			}

			// before the next left pull
			if err := ctx.Err(); err != nil {
				yield(zero, joinErrors.New(joinErrors.Source, joinErrors.Left, err))
				return
			}
		}

		if !j.strategy.HasUnmatchedPhase() {
			return
		}

		j.transit(ctx, StateDrainingUnmatchedRight)
		views := func(yieldView func(MatchView[R]) bool) {
			for v := range index.Unvisited() {
				j.stats.UnmatchedGroups++
				if !yieldView(v) {
					return
				}
			}
		}
		j.strategy.EmitUnmatched(views, emit)
	}
}
