package errors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KeyExtraction Kind = iota + 1
	Combiner
	Grouper
	Source
	UnsupportedJoinType
	Config
)

func (k Kind) String() string {
	switch k {
	case KeyExtraction:
		return `KeyExtractionError`
	case Combiner:
		return `CombinerError`
	case Grouper:
		return `GrouperError`
	case Source:
		return `SourceError`
	case UnsupportedJoinType:
		return `UnsupportedJoinType`
	case Config:
		return `ConfigError`
	}

	return fmt.Sprintf(`Kind(%d)`, int(k))
}

// Side tells which input of the join an error belongs to.
type Side string

const (
	NoSide Side = ``
	Left   Side = `left`
	Right  Side = `right`
)

// JoinError is the error surfaced by a join evaluation or a join construction.
type JoinError struct {
	Kind Kind
	Side Side
	Err  error
}

func (e *JoinError) Error() string {
	if e.Side == NoSide {
		return fmt.Sprintf(`stream-join: %s: %v`, e.Kind, e.Err)
	}

	return fmt.Sprintf(`stream-join: %s on %s side: %v`, e.Kind, e.Side, e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

func New(kind Kind, side Side, err error) *JoinError {
	return &JoinError{
		Kind: kind,
		Side: side,
		Err:  err,
	}
}

// KindOf returns the kind of the first JoinError in err's chain, or 0.
func KindOf(err error) Kind {
	var je *JoinError
	if errors.As(err, &je) {
		return je.Kind
	}

	return 0
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// As is errors.As for the join error type.
func As(err error) (*JoinError, bool) {
	var je *JoinError
	ok := errors.As(err, &je)
	return je, ok
}
