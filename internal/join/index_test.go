package join

import (
	"errors"
	"iter"
	"math"
	"reflect"
	"slices"
	"testing"

	joinErrors "github.com/pickme-go/stream-join/errors"
)

type item struct {
	id  int
	val string
}

func seqOf[T any](items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, i := range items {
			if !yield(i, nil) {
				return
			}
		}
	}
}

// countingSeq counts how many elements were pulled from it.
func countingSeq[T any](pulled *int, items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, i := range items {
			*pulled++
			if !yield(i, nil) {
				return
			}
		}
	}
}

func failingSeq[T any](err error, items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, i := range items {
			if !yield(i, nil) {
				return
			}
		}
		var zero T
		yield(zero, err)
	}
}

func itemKey(i item) (int, error) {
	return i.id, nil
}

func vals(v MatchView[item]) []string {
	var out []string
	for i := range v.All() {
		out = append(out, i.val)
	}
	return out
}

func TestBuildIndex(t *testing.T) {
	idx, err := BuildIndex(seqOf(
		item{1, `x`}, item{2, `p`}, item{1, `y`}, item{3, `z`}, item{1, `w`},
	), itemKey, 0)
	if err != nil {
		t.Fatal(err)
	}

	if idx.Len() != 3 {
		t.Errorf(`expected 3 buckets, have %d`, idx.Len())
	}

	if idx.Size() != 5 {
		t.Errorf(`expected 5 elements, have %d`, idx.Size())
	}

	v := idx.Lookup(1)
	if !v.Matched() || v.Len() != 3 {
		t.Fail()
	}

	if got := vals(v); !reflect.DeepEqual(got, []string{`x`, `y`, `w`}) {
		t.Errorf("expect [x y w] have %#v", got)
	}
}

func TestKeyIndex_LookupUnknown(t *testing.T) {
	idx, err := BuildIndex(seqOf(item{1, `x`}), itemKey, -1)
	if err != nil {
		t.Fatal(err)
	}

	v := idx.Lookup(42)
	if v.Matched() || !v.Empty() || v.Len() != 0 {
		t.Fail()
	}

	if idx.Len() != 1 {
		t.Error(`lookup of an unknown key must not add a bucket`)
	}

	var n int
	for range idx.Unvisited() {
		n++
	}
	if n != 1 {
		t.Errorf(`expected 1 unvisited bucket, have %d`, n)
	}
}

func TestKeyIndex_Unvisited(t *testing.T) {
	idx, err := BuildIndex(seqOf(
		item{3, `c`}, item{1, `a`}, item{2, `b`}, item{3, `cc`}, item{4, `d`},
	), itemKey, 8)
	if err != nil {
		t.Fatal(err)
	}

	idx.Lookup(1)
	idx.Lookup(4)

	var got [][]string
	for v := range idx.Unvisited() {
		got = append(got, vals(v))
	}

	want := [][]string{{`c`, `cc`}, {`b`}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expect %v have %v", want, got)
	}

	for range idx.Unvisited() {
		t.Error(`buckets must be emitted at most once`)
	}
}

func TestKeyIndex_UnvisitedEarlyStop(t *testing.T) {
	idx, _ := BuildIndex(seqOf(item{1, `a`}, item{2, `b`}), itemKey, 0)

	for range idx.Unvisited() {
		break
	}

	var rest []string
	for v := range idx.Unvisited() {
		rest = append(rest, vals(v)...)
	}

	if !reflect.DeepEqual(rest, []string{`b`}) {
		t.Errorf("expect [b] have %v", rest)
	}
}

func TestBuildIndex_KeyError(t *testing.T) {
	boom := errors.New(`boom`)
	pulled := 0
	idx, err := BuildIndex(countingSeq(&pulled, item{1, `a`}, item{2, `b`}, item{3, `c`}), func(i item) (int, error) {
		if i.id == 2 {
			return 0, boom
		}
		return i.id, nil
	}, 0)

	if idx != nil {
		t.Error(`no partial index may be returned`)
	}

	je, ok := joinErrors.As(err)
	if !ok || je.Kind != joinErrors.KeyExtraction || je.Side != joinErrors.Right {
		t.Fatalf(`unexpected error %v`, err)
	}

	if pulled != 2 {
		t.Errorf(`expected the build to stop at the failing element, pulled %d`, pulled)
	}
}

func TestBuildIndex_SourceError(t *testing.T) {
	_, err := BuildIndex(failingSeq(errors.New(`read failed`), item{1, `a`}), itemKey, 0)
	if !joinErrors.Is(err, joinErrors.Source) {
		t.Errorf(`expected a source error, have %v`, err)
	}
}

func TestBuildIndex_NilKeys(t *testing.T) {
	type ref struct{ parent *int }
	one := 1
	idx, err := BuildIndex(seqOf(ref{nil}, ref{&one}, ref{nil}), func(r ref) (*int, error) {
		return r.parent, nil
	}, 0)
	if err != nil {
		t.Fatal(err)
	}

	if idx.Len() != 2 || idx.Lookup(nil).Len() != 2 {
		t.Error(`nil keys must be grouped, not dropped`)
	}
}

func TestBuildIndex_UnhashableKey(t *testing.T) {
	_, err := BuildIndex(seqOf[any](1, []int{1, 2}), func(v any) (any, error) {
		return v, nil
	}, 0)

	if !joinErrors.Is(err, joinErrors.KeyExtraction) {
		t.Errorf(`expected a key extraction error, have %v`, err)
	}

	type composite struct {
		a int
		b any
	}
	_, err = BuildIndex(seqOf(composite{1, map[string]int{}}), func(c composite) (composite, error) {
		return c, nil
	}, 0)

	if !joinErrors.Is(err, joinErrors.KeyExtraction) {
		t.Errorf(`expected a key extraction error, have %v`, err)
	}

	idx, err := BuildIndex(seqOf[any](nil, `a`, 1), func(v any) (any, error) {
		return v, nil
	}, 0)
	if err != nil || idx.Len() != 3 {
		t.Errorf(`hashable interface keys must be accepted, have %v`, err)
	}
}

func TestBuildIndex_NaNKeys(t *testing.T) {
	idx, err := BuildIndex(seqOf(math.NaN(), math.NaN(), 1.5), func(f float64) (float64, error) {
		return f, nil
	}, 0)
	if err != nil {
		t.Fatal(err)
	}

	if idx.Size() != 3 || idx.Len() != 3 {
		t.Errorf(`every NaN keyed element forms its own bucket, have %d buckets`, idx.Len())
	}

	if idx.Lookup(math.NaN()).Matched() {
		t.Error(`NaN never matches`)
	}

	var n int
	for v := range idx.Unvisited() {
		n += v.Len()
	}
	if n != 3 {
		t.Errorf(`expected all 3 elements unvisited, have %d`, n)
	}
}

func TestMatchView_AllStops(t *testing.T) {
	v := MatchView[int]{items: []int{1, 2, 3}, matched: true}
	var got []int
	for i := range v.All() {
		got = append(got, i)
		if i == 2 {
			break
		}
	}

	if !slices.Equal(got, []int{1, 2}) {
		t.Fail()
	}
}
