package join

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/pickme-go/errors"
	joinErrors "github.com/pickme-go/stream-join/errors"
)

// KeyFunc derives the join key of an element.
type KeyFunc[T any, K comparable] func(T) (K, error)

type bucket[R any] struct {
	items   []R
	visited bool
}

// KeyIndex maps a derived key to the right side elements sharing it. Buckets
// keep arrival order, and the index remembers bucket creation order for the
// unmatched phase of full outer joins.
type KeyIndex[R any, K comparable] struct {
	keys     map[K]*bucket[R]
	buckets  []*bucket[R]
	size     int
	hashable func(K) error
}

// BuildIndex drains right completely. Nothing is returned on failure.
func BuildIndex[R any, K comparable](right iter.Seq2[R, error], key KeyFunc[R, K], sizeHint int) (*KeyIndex[R, K], error) {
	if sizeHint < 0 {
		sizeHint = 0
	}

	idx := &KeyIndex[R, K]{
		keys:     make(map[K]*bucket[R], sizeHint),
		hashable: hashCheck[K](),
	}

	for r, err := range right {
		if err != nil {
			return nil, joinErrors.New(joinErrors.Source, joinErrors.Right,
				errors.WithPrevious(err, `cannot read right element`))
		}

		k, err := key(r)
		if err != nil {
			return nil, joinErrors.New(joinErrors.KeyExtraction, joinErrors.Right,
				errors.WithPrevious(err, fmt.Sprintf(`key function failed on right element #%d`, idx.size)))
		}

		if err := idx.hashable(k); err != nil {
			return nil, joinErrors.New(joinErrors.KeyExtraction, joinErrors.Right, err)
		}

		idx.add(k, r)
	}

	return idx, nil
}

func (i *KeyIndex[R, K]) add(k K, r R) {
	b, ok := i.keys[k]
	if !ok {
		b = &bucket[R]{}
		i.keys[k] = b
		i.buckets = append(i.buckets, b)
	}
	b.items = append(b.items, r)
	i.size++
}

// Hashable must hold for any key passed to Lookup.
func (i *KeyIndex[R, K]) Hashable(k K) error {
	return i.hashable(k)
}

// Lookup returns the bucket of k and marks it visited. Unknown keys give an
// empty view and leave the index untouched.
func (i *KeyIndex[R, K]) Lookup(k K) MatchView[R] {
	b, ok := i.keys[k]
	if !ok {
		return MatchView[R]{}
	}

	b.visited = true
	return MatchView[R]{
		items:   b.items,
		matched: true,
	}
}

// Unvisited yields, in creation order, the buckets no lookup has touched.
// Each bucket is marked visited as it is yielded, so a bucket is emitted at
// most once even across repeated calls.
func (i *KeyIndex[R, K]) Unvisited() iter.Seq[MatchView[R]] {
	return func(yield func(MatchView[R]) bool) {
		for _, b := range i.buckets {
			if b.visited {
				continue
			}
			b.visited = true
			if !yield(MatchView[R]{items: b.items}) {
				return
			}
		}
	}
}

// Len returns the number of buckets.
func (i *KeyIndex[R, K]) Len() int {
	return len(i.buckets)
}

// Size returns the number of indexed elements.
func (i *KeyIndex[R, K]) Size() int {
	return i.size
}

// MatchView is a read-only view over one bucket.
type MatchView[R any] struct {
	items   []R
	matched bool
}

func (v MatchView[R]) Len() int {
	return len(v.items)
}

func (v MatchView[R]) Empty() bool {
	return len(v.items) == 0
}

// Matched reports whether the looked up key exists in the index.
func (v MatchView[R]) Matched() bool {
	return v.matched
}

func (v MatchView[R]) All() iter.Seq[R] {
	return func(yield func(R) bool) {
		for _, r := range v.items {
			if !yield(r) {
				return
			}
		}
	}
}

// hashCheck guards keys that hold interfaces: a map insert with an unhashable
// dynamic value panics, so it is turned into a key extraction error.
func hashCheck[K comparable]() func(K) error {
	if !holdsInterface(reflect.TypeFor[K]()) {
		return func(K) error { return nil }
	}

	return func(k K) error {
		v := reflect.ValueOf(&k).Elem()
		if v.Comparable() {
			return nil
		}
		return errors.New(fmt.Sprintf(`key %v of type %T is not hashable`, k, k))
	}
}

func holdsInterface(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Array:
		return holdsInterface(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsInterface(t.Field(i).Type) {
				return true
			}
		}
	}

	return false
}
