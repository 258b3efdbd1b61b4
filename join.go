/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package streamjoin

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	joinErrors "github.com/pickme-go/stream-join/errors"
	"github.com/pickme-go/stream-join/graph"
	"github.com/pickme-go/stream-join/internal/join"
)

type Type = join.Type

const (
	Inner     = join.InnerJoin
	LeftOuter = join.LeftOuterJoin
	FullOuter = join.FullOuterJoin
)

// ParseType reads the textual form of a join type.
func ParseType(s string) (Type, error) {
	return join.ParseType(s)
}

// KeyFunc derives the join key of an element. Keys are compared with ==.
type KeyFunc[T any, K comparable] func(T) (K, error)

// KeyOf adapts a key function that cannot fail.
func KeyOf[T any, K comparable](f func(T) K) KeyFunc[T, K] {
	return func(t T) (K, error) {
		return f(t), nil
	}
}

// Spec describes a join between two sources.
type Spec[L, R any, K comparable] struct {
	Name     string
	Type     Type
	Left     iter.Seq2[L, error]
	LeftKey  KeyFunc[L, K]
	Right    iter.Seq2[R, error]
	RightKey KeyFunc[R, K]

	// LeftName and RightName only label the plan.
	LeftName  string
	RightName string
}

func (s Spec[L, R, K]) validate() error {
	if !s.Type.Valid() {
		return joinErrors.New(joinErrors.UnsupportedJoinType, joinErrors.NoSide,
			errors.New(fmt.Sprintf(`unsupported join type [%s]`, s.Type)))
	}

	var missing string
	switch {
	case s.Left == nil:
		missing = `left source`
	case s.LeftKey == nil:
		missing = `left key function`
	case s.Right == nil:
		missing = `right source`
	case s.RightKey == nil:
		missing = `right key function`
	}
	if missing != `` {
		return joinErrors.New(joinErrors.Config, joinErrors.NoSide,
			errors.New(fmt.Sprintf(`join [%s] has no %s`, s.Name, missing)))
	}

	return nil
}

// Plan describes the join. output names the projection, e.g. `combine`.
func (s Spec[L, R, K]) Plan(output string) graph.Plan {
	p := graph.Plan{
		Name:   s.Name,
		Type:   s.Type.String(),
		Left:   s.LeftName,
		Right:  s.RightName,
		Output: output,
	}
	if p.Name == `` {
		p.Name = `join`
	}
	if p.Left == `` {
		p.Left = `left`
	}
	if p.Right == `` {
		p.Right = `right`
	}

	return p
}

// Combine joins spec and builds one output per matching pair. Only inner
// joins accept a combiner.
func Combine[L, R any, K comparable, Y any](ctx context.Context, spec Spec[L, R, K], combiner func(L, R) (Y, error), opts ...Option) (*Rows[Y], error) {
	if combiner == nil {
		return nil, joinErrors.New(joinErrors.Config, joinErrors.NoSide, errors.New(`combiner cannot be nil`))
	}

	return evaluate(ctx, spec, join.Projector[L, R, Y]{Combine: combiner}, opts)
}

// Group joins spec and builds one output per left element, plus one per
// unmatched right key for full outer joins, where left is nil.
func Group[L, R any, K comparable, Y any](ctx context.Context, spec Spec[L, R, K], grouper func(*L, iter.Seq[R]) (Y, error), opts ...Option) (*Rows[Y], error) {
	if grouper == nil {
		return nil, joinErrors.New(joinErrors.Config, joinErrors.NoSide, errors.New(`grouper cannot be nil`))
	}

	return evaluate(ctx, spec, join.Projector[L, R, Y]{Group: grouper}, opts)
}

func evaluate[L, R any, K comparable, Y any](ctx context.Context, spec Spec[L, R, K], projector join.Projector[L, R, Y], opts []Option) (*Rows[Y], error) {
	conf, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	if spec.Name == `` {
		spec.Name = conf.name
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}

	strategy, err := join.NewStrategy(spec.Type, projector)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	logger := conf.logger.NewLog(log.Prefixed(fmt.Sprintf(`join.%s`, spec.Name)))

	joiner := join.NewJoiner(join.Config[L, R, K]{
		Left:     spec.Left,
		LeftKey:  join.KeyFunc[L, K](spec.LeftKey),
		Right:    spec.Right,
		RightKey: join.KeyFunc[R, K](spec.RightKey),
		SizeHint: conf.sizeHint,
		Logger:   logger,
	}, strategy)

	return newRows(ctx, joiner, evaluation{
		id:      id,
		name:    spec.Name,
		typ:     spec.Type,
		logger:  logger,
		metrics: conf.metrics,
		handler: conf.errorHandler,
	}), nil
}
