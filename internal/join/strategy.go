package join

import (
	"fmt"
	"iter"
	"strings"

	"github.com/pickme-go/errors"
	joinErrors "github.com/pickme-go/stream-join/errors"
)

type Type int

const (
	InnerJoin Type = iota + 1
	LeftOuterJoin
	FullOuterJoin
)

func (t Type) String() string {
	switch t {
	case InnerJoin:
		return `inner`
	case LeftOuterJoin:
		return `left_outer`
	case FullOuterJoin:
		return `full_outer`
	}

	return fmt.Sprintf(`unknown(%d)`, int(t))
}

func (t Type) Valid() bool {
	return t == InnerJoin || t == LeftOuterJoin || t == FullOuterJoin
}

// ParseType accepts the String forms plus a few common spellings
// (`left`, `left-outer`, `full`, `outer`).
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case `inner`, `join`:
		return InnerJoin, nil
	case `left_outer`, `left-outer`, `leftouter`, `left`:
		return LeftOuterJoin, nil
	case `full_outer`, `full-outer`, `fullouter`, `full`, `outer`:
		return FullOuterJoin, nil
	}

	return 0, joinErrors.New(joinErrors.UnsupportedJoinType, joinErrors.NoSide,
		errors.New(fmt.Sprintf(`unknown join type [%s]`, s)))
}

// Projector builds output elements. Exactly one of Combine or Group is set.
//
// Combine produces one output per matching (left, right) pair. Group produces
// one output per left element with all of its matches; a nil left marks the
// group of right elements no left element matched (full outer only).
type Projector[L, R, Y any] struct {
	Combine func(left L, right R) (Y, error)
	Group   func(left *L, rights iter.Seq[R]) (Y, error)
}

func (p Projector[L, R, Y]) validate() error {
	if p.Combine == nil && p.Group == nil {
		return errors.New(`either a combiner or a grouper is required`)
	}

	if p.Combine != nil && p.Group != nil {
		return errors.New(`combiner and grouper are mutually exclusive`)
	}

	return nil
}

// project hands the outputs of left and its matches to yield. It returns
// false once the consumer stopped or an error was yielded.
func (p Projector[L, R, Y]) project(left *L, view MatchView[R], yield func(Y, error) bool) bool {
	var zero Y

	if p.Group != nil {
		y, err := p.Group(left, view.All())
		if err != nil {
			yield(zero, joinErrors.New(joinErrors.Grouper, joinErrors.NoSide,
				errors.WithPrevious(err, `grouper failed`)))
			return false
		}
		return yield(y, nil)
	}

	for r := range view.All() {
		y, err := p.Combine(*left, r)
		if err != nil {
			yield(zero, joinErrors.New(joinErrors.Combiner, joinErrors.NoSide,
				errors.WithPrevious(err, `combiner failed`)))
			return false
		}
		if !yield(y, nil) {
			return false
		}
	}

	return true
}

// Strategy decides what a left element and its matches emit, and whether
// unmatched right buckets are emitted once the left side is drained.
type Strategy[L, R, Y any] struct {
	typ       Type
	projector Projector[L, R, Y]
	matched   func(left L, view MatchView[R], yield func(Y, error) bool) bool
	unmatched func(views iter.Seq[MatchView[R]], yield func(Y, error) bool) bool
}

// NewStrategy dispatches on typ once. Outer joins need a grouper because a
// combiner has no way to receive an absent right element.
func NewStrategy[L, R, Y any](typ Type, projector Projector[L, R, Y]) (*Strategy[L, R, Y], error) {
	if err := projector.validate(); err != nil {
		return nil, joinErrors.New(joinErrors.Config, joinErrors.NoSide, err)
	}

	s := &Strategy[L, R, Y]{
		typ:       typ,
		projector: projector,
	}

	switch typ {
	case InnerJoin:
		s.matched = s.inner
	case LeftOuterJoin:
		s.matched = s.leftOuter
	case FullOuterJoin:
		s.matched = s.fullOuter
		s.unmatched = s.unmatchedRight
	default:
		return nil, joinErrors.New(joinErrors.UnsupportedJoinType, joinErrors.NoSide,
			errors.New(fmt.Sprintf(`unsupported join type [%s]`, typ)))
	}

	if typ != InnerJoin && projector.Group == nil {
		return nil, joinErrors.New(joinErrors.Config, joinErrors.NoSide,
			errors.New(fmt.Sprintf(`%s join requires a grouper, combiners cannot receive unmatched elements`, typ)))
	}

	return s, nil
}

func (s *Strategy[L, R, Y]) Type() Type {
	return s.typ
}

// Emit handles one left element.
func (s *Strategy[L, R, Y]) Emit(left L, view MatchView[R], yield func(Y, error) bool) bool {
	return s.matched(left, view, yield)
}

// HasUnmatchedPhase reports whether unmatched right buckets are emitted after
// the left side.
func (s *Strategy[L, R, Y]) HasUnmatchedPhase() bool {
	return s.unmatched != nil
}

// EmitUnmatched must only be called after the left side is drained.
func (s *Strategy[L, R, Y]) EmitUnmatched(views iter.Seq[MatchView[R]], yield func(Y, error) bool) bool {
	if s.unmatched == nil {
		return true
	}
	return s.unmatched(views, yield)
}

func (s *Strategy[L, R, Y]) inner(left L, view MatchView[R], yield func(Y, error) bool) bool {
	if view.Empty() {
		return true
	}
	return s.projector.project(&left, view, yield)
}

func (s *Strategy[L, R, Y]) leftOuter(left L, view MatchView[R], yield func(Y, error) bool) bool {
	return s.projector.project(&left, view, yield)
}

func (s *Strategy[L, R, Y]) fullOuter(left L, view MatchView[R], yield func(Y, error) bool) bool {
	// the lookup already marked the bucket visited, which keeps it out of the
	// unmatched phase
	return s.projector.project(&left, view, yield)
}

func (s *Strategy[L, R, Y]) unmatchedRight(views iter.Seq[MatchView[R]], yield func(Y, error) bool) bool {
	for view := range views {
		if !s.projector.project(nil, view, yield) {
			return false
		}
	}
	return true
}
