// Package graph implements the in-memory concept DAG (C1): a flat arena of
// nodes keyed by concept id, parent edges, per-branch "updated" marks, and a
// visited-set-bounded transitive closure walk.
package graph

import (
	"github.com/terminology-platform/semindex/internal/domain"
)

// Node is one concept's position in the DAG: its parent ids and the set of
// branch paths for which its closure is known to have changed in the
// current pipeline run. No ancestor set is stored on Node; it is always
// recomputed on demand by Builder.TransitiveClosure.
type Node struct {
	ConceptID     domain.ConceptID
	Parents       domain.ConceptSet
	updatedOnPath map[string]struct{}
}

func newNode(id domain.ConceptID) *Node {
	return &Node{
		ConceptID:     id,
		Parents:       domain.ConceptSet{},
		updatedOnPath: map[string]struct{}{},
	}
}

// Builder owns the arena: a map from concept id to Node. It is not safe for
// concurrent use; a single commit's pipeline run owns one Builder exclusively.
type Builder struct {
	nodes map[domain.ConceptID]*Node
}

// NewBuilder returns an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[domain.ConceptID]*Node)}
}

// Len reports how many nodes the arena currently holds.
func (b *Builder) Len() int { return len(b.nodes) }

// Node returns the node for id, or nil if it has never been touched.
func (b *Builder) Node(id domain.ConceptID) *Node {
	return b.nodes[id]
}

// Nodes returns every node currently in the arena, in no particular order.
func (b *Builder) Nodes() []*Node {
	out := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		out = append(out, n)
	}
	return out
}

func (b *Builder) ensure(id domain.ConceptID) *Node {
	n, ok := b.nodes[id]
	if !ok {
		n = newNode(id)
		b.nodes[id] = n
	}
	return n
}

// AddParent ensures both child and parent exist in the arena and inserts
// parent into child's parent set. Returns the child node for chaining with
// MarkUpdated.
func (b *Builder) AddParent(child, parent domain.ConceptID) *Node {
	b.ensure(parent)
	childNode := b.ensure(child)
	childNode.Parents.Add(parent)
	return childNode
}

// RemoveParent removes parent from child's parent set and returns the child
// node. Returns nil if child was never indexed — the relationship being
// removed was never part of the graph, which is a no-op.
func (b *Builder) RemoveParent(child, parent domain.ConceptID) *Node {
	n, ok := b.nodes[child]
	if !ok {
		return nil
	}
	delete(n.Parents, parent)
	return n
}

// MarkUpdated records that node's closure changed as of branchPath. A nil
// node is tolerated so callers can chain AddParent/RemoveParent directly
// without a nil check.
func (b *Builder) MarkUpdated(node *Node, branchPath string) {
	if node == nil {
		return
	}
	node.updatedOnPath[branchPath] = struct{}{}
}

// IsAncestorOrSelfUpdated reports whether node itself, or any transitive
// ancestor of node, bears the updated mark for branchPath.
func (b *Builder) IsAncestorOrSelfUpdated(node *Node, branchPath string) bool {
	if node == nil {
		return false
	}
	if _, ok := node.updatedOnPath[branchPath]; ok {
		return true
	}
	visited := map[domain.ConceptID]struct{}{node.ConceptID: {}}
	return b.ancestorUpdated(node, branchPath, visited)
}

func (b *Builder) ancestorUpdated(node *Node, branchPath string, visited map[domain.ConceptID]struct{}) bool {
	for parentID := range node.Parents {
		if _, seen := visited[parentID]; seen {
			continue
		}
		visited[parentID] = struct{}{}
		parent, ok := b.nodes[parentID]
		if !ok {
			continue
		}
		if _, ok := parent.updatedOnPath[branchPath]; ok {
			return true
		}
		if b.ancestorUpdated(parent, branchPath, visited) {
			return true
		}
	}
	return false
}

// TransitiveClosure performs a DFS over node's parents, bounded by a
// visited-set so diamonds are not revisited, and returns the set of strict
// ancestors. Relies on the acyclicity invariant (data model invariant 5) for
// termination; a cycle introduced upstream would not be defended against
// here.
func (b *Builder) TransitiveClosure(node *Node) domain.ConceptSet {
	ancestors := domain.ConceptSet{}
	if node == nil {
		return ancestors
	}
	visited := map[domain.ConceptID]struct{}{node.ConceptID: {}}
	b.collectAncestors(node, ancestors, visited)
	return ancestors
}

func (b *Builder) collectAncestors(node *Node, ancestors domain.ConceptSet, visited map[domain.ConceptID]struct{}) {
	for parentID := range node.Parents {
		ancestors.Add(parentID)
		if _, seen := visited[parentID]; seen {
			continue
		}
		visited[parentID] = struct{}{}
		if parentNode, ok := b.nodes[parentID]; ok {
			b.collectAncestors(parentNode, ancestors, visited)
		}
	}
}
