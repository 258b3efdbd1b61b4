package join

import (
	"iter"
	"testing"

	joinErrors "github.com/pickme-go/stream-join/errors"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: `inner`, want: InnerJoin},
		{in: ` INNER `, want: InnerJoin},
		{in: `left_outer`, want: LeftOuterJoin},
		{in: `left`, want: LeftOuterJoin},
		{in: `full-outer`, want: FullOuterJoin},
		{in: `outer`, want: FullOuterJoin},
		{in: `cross`, wantErr: true},
		{in: ``, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				if !joinErrors.Is(err, joinErrors.UnsupportedJoinType) {
					t.Errorf(`expected UnsupportedJoinType, have %v`, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseType(%q) = %v, %v want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestType_String(t *testing.T) {
	for _, typ := range []Type{InnerJoin, LeftOuterJoin, FullOuterJoin} {
		parsed, err := ParseType(typ.String())
		if err != nil || parsed != typ {
			t.Errorf(`%s does not round trip`, typ)
		}
	}

	if Type(42).Valid() {
		t.Fail()
	}
}

func combineNames(l item, r item) (string, error) {
	return l.val + r.val, nil
}

func groupNames(l *item, rs iter.Seq[item]) (string, error) {
	out := `-`
	if l != nil {
		out = l.val
	}
	for r := range rs {
		out += r.val
	}
	return out, nil
}

func TestNewStrategy_Validation(t *testing.T) {
	tests := []struct {
		name      string
		typ       Type
		projector Projector[item, item, string]
		kind      joinErrors.Kind
	}{
		{name: `inner combine`, typ: InnerJoin, projector: Projector[item, item, string]{Combine: combineNames}},
		{name: `inner group`, typ: InnerJoin, projector: Projector[item, item, string]{Group: groupNames}},
		{name: `left outer group`, typ: LeftOuterJoin, projector: Projector[item, item, string]{Group: groupNames}},
		{name: `full outer group`, typ: FullOuterJoin, projector: Projector[item, item, string]{Group: groupNames}},
		{name: `left outer combine`, typ: LeftOuterJoin, projector: Projector[item, item, string]{Combine: combineNames}, kind: joinErrors.Config},
		{name: `full outer combine`, typ: FullOuterJoin, projector: Projector[item, item, string]{Combine: combineNames}, kind: joinErrors.Config},
		{name: `no projector`, typ: InnerJoin, kind: joinErrors.Config},
		{name: `both projectors`, typ: InnerJoin, projector: Projector[item, item, string]{Combine: combineNames, Group: groupNames}, kind: joinErrors.Config},
		{name: `unknown type`, typ: Type(0), projector: Projector[item, item, string]{Group: groupNames}, kind: joinErrors.UnsupportedJoinType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStrategy(tt.typ, tt.projector)
			if tt.kind == 0 {
				if err != nil || s.Type() != tt.typ {
					t.Errorf(`unexpected error %v`, err)
				}
				return
			}
			if s != nil || joinErrors.KindOf(err) != tt.kind {
				t.Errorf(`expected %s, have %v`, tt.kind, err)
			}
		})
	}
}

func collectEmit(s *Strategy[item, item, string], left item, view MatchView[item]) []string {
	var out []string
	s.Emit(left, view, func(y string, err error) bool {
		out = append(out, y)
		return true
	})
	return out
}

func TestStrategy_Emit(t *testing.T) {
	matches := MatchView[item]{items: []item{{1, `x`}, {1, `y`}}, matched: true}
	empty := MatchView[item]{}
	left := item{1, `a`}

	innerCombine, _ := NewStrategy(InnerJoin, Projector[item, item, string]{Combine: combineNames})
	innerGroup, _ := NewStrategy(InnerJoin, Projector[item, item, string]{Group: groupNames})
	leftOuter, _ := NewStrategy(LeftOuterJoin, Projector[item, item, string]{Group: groupNames})
	fullOuter, _ := NewStrategy(FullOuterJoin, Projector[item, item, string]{Group: groupNames})

	tests := []struct {
		name     string
		strategy *Strategy[item, item, string]
		view     MatchView[item]
		want     []string
	}{
		{`inner combine matched`, innerCombine, matches, []string{`ax`, `ay`}},
		{`inner combine empty`, innerCombine, empty, nil},
		{`inner group matched`, innerGroup, matches, []string{`axy`}},
		{`inner group empty`, innerGroup, empty, nil},
		{`left outer matched`, leftOuter, matches, []string{`axy`}},
		{`left outer empty`, leftOuter, empty, []string{`a`}},
		{`full outer matched`, fullOuter, matches, []string{`axy`}},
		{`full outer empty`, fullOuter, empty, []string{`a`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectEmit(tt.strategy, left, tt.view)
			if len(got) != len(tt.want) {
				t.Fatalf("expect %v have %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expect %v have %v", tt.want, got)
				}
			}
		})
	}

	if innerCombine.HasUnmatchedPhase() || leftOuter.HasUnmatchedPhase() || !fullOuter.HasUnmatchedPhase() {
		t.Error(`only full outer joins have an unmatched phase`)
	}
}

func TestStrategy_EmitStopsOnConsumer(t *testing.T) {
	s, _ := NewStrategy(InnerJoin, Projector[item, item, string]{Combine: combineNames})
	view := MatchView[item]{items: []item{{1, `x`}, {1, `y`}, {1, `z`}}, matched: true}

	calls := 0
	cont := s.Emit(item{1, `a`}, view, func(string, error) bool {
		calls++
		return false
	})

	if cont || calls != 1 {
		t.Errorf(`expected a single yield, have %d`, calls)
	}
}
