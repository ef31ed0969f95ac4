package attrchange

import (
	"testing"

	"github.com/terminology-platform/semindex/internal/domain"
)

func i32(v int32) *int32 { return &v }

func TestReplay_GroupedAttribute(t *testing.T) {
	a := New()
	a.Add(5, domain.AttributeChange{EffectiveTime: i32(20240101), Group: 1, Type: 7, Value: 8, Add: true})

	groups := a.Replay(5, nil)
	if _, ok := groups[1][7][8]; !ok {
		t.Fatalf("expected group 1 to contain type 7 -> value 8, got %v", groups)
	}
}

func TestReplay_SecondCommitAddsBinding(t *testing.T) {
	a := New()
	a.Add(5, domain.AttributeChange{EffectiveTime: i32(20240101), Group: 1, Type: 7, Value: 8, Add: true})
	existing := a.Replay(5, nil)

	b := New()
	b.Add(5, domain.AttributeChange{EffectiveTime: i32(20240201), Group: 1, Type: 7, Value: 9, Add: true})
	final := b.Replay(5, existing)

	if len(final[1][7]) != 2 {
		t.Fatalf("expected group 1 type 7 to contain both bindings, got %v", final[1][7])
	}
}

func TestEffectiveSortedChanges_AddBeforeRemoveAtSameTime(t *testing.T) {
	a := New()
	a.Add(1, domain.AttributeChange{EffectiveTime: i32(100), Group: 0, Type: 1, Value: 1, Add: false})
	a.Add(1, domain.AttributeChange{EffectiveTime: i32(100), Group: 0, Type: 1, Value: 1, Add: true})

	sorted := a.EffectiveSortedChanges(1)
	if !sorted[0].Add || sorted[1].Add {
		t.Fatalf("expected add before remove at equal effective time, got %+v", sorted)
	}
}

func TestEffectiveSortedChanges_NilEffectiveTimeSortsAsSentinel(t *testing.T) {
	a := New()
	a.Add(1, domain.AttributeChange{EffectiveTime: nil, Group: 0, Type: 1, Value: 1, Add: true})
	a.Add(1, domain.AttributeChange{EffectiveTime: i32(20240101), Group: 0, Type: 1, Value: 2, Add: true})

	sorted := a.EffectiveSortedChanges(1)
	if sorted[0].Value != 2 || sorted[1].Value != 1 {
		t.Fatalf("expected dated change before nil-effective-time change, got %+v", sorted)
	}
}

func TestReplay_RemoveIsIdempotent(t *testing.T) {
	a := New()
	a.Add(1, domain.AttributeChange{EffectiveTime: i32(1), Group: 0, Type: 1, Value: 1, Add: false})
	a.Add(1, domain.AttributeChange{EffectiveTime: i32(2), Group: 0, Type: 1, Value: 1, Add: false})

	groups := a.Replay(1, nil)
	if len(groups) != 0 {
		t.Fatalf("expected empty groups after redundant removes, got %v", groups)
	}
}
