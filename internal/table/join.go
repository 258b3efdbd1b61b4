package table

import (
	"context"
	"fmt"
	"iter"

	"github.com/pickme-go/errors"
	streamjoin "github.com/pickme-go/stream-join"
	joinErrors "github.com/pickme-go/stream-join/errors"
	"github.com/pickme-go/stream-join/graph"
)

const (
	OutputMerge   = `merge`
	OutputFlatten = `flatten`
)

// Request describes a join between two record sources by column.
type Request struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	LeftKey  string `json:"left_key"`
	// RightKey defaults to LeftKey.
	RightKey string `json:"right_key"`
	// Output is `merge` (one row per pair, inner joins only) or `flatten`
	// (one row per left record with its matches under Column). Outer joins
	// default to flatten.
	Output string `json:"output"`
	Column string `json:"column"`
	Prefix string `json:"prefix"`
}

func (q Request) normalize() (Request, streamjoin.Type, error) {
	typ, err := streamjoin.ParseType(q.Type)
	if err != nil {
		return q, 0, err
	}

	if q.LeftKey == `` {
		return q, 0, joinErrors.New(joinErrors.Config, joinErrors.NoSide, errors.New(`left key column is required`))
	}

	if q.RightKey == `` {
		q.RightKey = q.LeftKey
	}

	if q.Output == `` {
		q.Output = OutputFlatten
		if typ == streamjoin.Inner {
			q.Output = OutputMerge
		}
	}

	if q.Column == `` {
		q.Column = `matches`
	}

	if q.Prefix == `` {
		q.Prefix = `right`
	}

	return q, typ, nil
}

func (q Request) Run(ctx context.Context, left, right iter.Seq2[Record, error], opts ...streamjoin.Option) (*streamjoin.Rows[Record], error) {
	q, typ, err := q.normalize()
	if err != nil {
		return nil, err
	}

	spec := streamjoin.Spec[Record, Record, string]{
		Name:     q.Name,
		Type:     typ,
		Left:     left,
		LeftKey:  ColumnKey(q.LeftKey),
		Right:    right,
		RightKey: ColumnKey(q.RightKey),
	}

	switch q.Output {
	case OutputMerge:
		return streamjoin.Combine(ctx, spec, Merge(q.Prefix), opts...)
	case OutputFlatten:
		return streamjoin.Group(ctx, spec, Flatten(q.Column), opts...)
	}

	return nil, joinErrors.New(joinErrors.Config, joinErrors.NoSide,
		errors.New(fmt.Sprintf(`unknown output [%s]`, q.Output)))
}

func (q Request) Plan(leftName, rightName string) (graph.Plan, error) {
	q, typ, err := q.normalize()
	if err != nil {
		return graph.Plan{}, err
	}

	p := streamjoin.Spec[Record, Record, string]{
		Name:      q.Name,
		Type:      typ,
		LeftName:  leftName,
		RightName: rightName,
	}.Plan(q.Output)
	p.LeftKey = q.LeftKey
	p.RightKey = q.RightKey

	return p, nil
}
