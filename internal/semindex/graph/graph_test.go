package graph

import (
	"testing"

	"github.com/terminology-platform/semindex/internal/domain"
)

func TestAddParent_ChainClosure(t *testing.T) {
	b := NewBuilder()
	b.AddParent(2, 1)
	b.AddParent(3, 2)

	closure := b.TransitiveClosure(b.Node(3))
	if !closure.Has(2) || !closure.Has(1) {
		t.Fatalf("expected closure to contain {1,2}, got %v", closure)
	}
	if len(closure) != 2 {
		t.Fatalf("expected closure size 2, got %d: %v", len(closure), closure)
	}
}

func TestAddParent_DiamondDedupes(t *testing.T) {
	b := NewBuilder()
	b.AddParent(2, 1)
	b.AddParent(3, 2)
	b.AddParent(4, 2)
	b.AddParent(4, 3)

	closure := b.TransitiveClosure(b.Node(4))
	want := domain.NewConceptSet(1, 2, 3)
	if len(closure) != len(want) {
		t.Fatalf("want %v, got %v", want, closure)
	}
	for id := range want {
		if !closure.Has(id) {
			t.Fatalf("expected %d in closure, got %v", id, closure)
		}
	}
}

func TestRemoveParent_UnknownChildIsNoop(t *testing.T) {
	b := NewBuilder()
	if n := b.RemoveParent(99, 1); n != nil {
		t.Fatalf("expected nil node for unknown child, got %+v", n)
	}
}

func TestRemoveParent_Reparent(t *testing.T) {
	b := NewBuilder()
	b.AddParent(2, 1)
	b.AddParent(3, 2)
	b.AddParent(4, 2)
	b.AddParent(4, 3)

	// Scenario 3 (reparent): deactivate 4->2, add 4->1 in the same commit.
	b.RemoveParent(4, 2)
	b.AddParent(4, 1)

	closure := b.TransitiveClosure(b.Node(4))
	want := domain.NewConceptSet(3, 2, 1)
	if len(closure) != len(want) {
		t.Fatalf("want %v, got %v", want, closure)
	}
	if !closure.Has(2) {
		t.Fatalf("expected 2 to remain an ancestor via 3, got %v", closure)
	}
}

func TestIsAncestorOrSelfUpdated(t *testing.T) {
	b := NewBuilder()
	child := b.AddParent(2, 1)
	b.MarkUpdated(child, "MAIN")

	if !b.IsAncestorOrSelfUpdated(child, "MAIN") {
		t.Fatalf("expected self to be marked updated")
	}

	grandchild := b.AddParent(3, 2)
	if !b.IsAncestorOrSelfUpdated(grandchild, "MAIN") {
		t.Fatalf("expected ancestor-updated to propagate through parent chain")
	}
	if b.IsAncestorOrSelfUpdated(grandchild, "OTHER") {
		t.Fatalf("expected branch-scoped updated mark not to leak across paths")
	}
}

func TestMarkUpdated_NilNodeIsNoop(t *testing.T) {
	b := NewBuilder()
	b.MarkUpdated(nil, "MAIN") // must not panic
}

func TestTransitiveClosure_NilNode(t *testing.T) {
	b := NewBuilder()
	if closure := b.TransitiveClosure(nil); len(closure) != 0 {
		t.Fatalf("expected empty closure for nil node, got %v", closure)
	}
}
