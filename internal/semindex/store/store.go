// Package store defines the versioned content store's contract (§6): the
// commit-hook inbound surface and the outbound query/persistence surface
// every pipeline component is built against. The underlying store's own
// branch/commit engine is an out-of-scope external collaborator; this
// package only names the shape a caller must provide.
package store

import (
	"context"

	"github.com/terminology-platform/semindex/internal/domain"
)

// Branch identifies a named line of versioned content.
type Branch struct {
	Path   string
	Parent string // "" for the root branch
}

// IsRoot reports whether this branch has no parent.
func (b Branch) IsRoot() bool { return b.Parent == "" }

// Commit is the inbound commit-hook contract: the store invokes
// PreCommitCompletion between staged writes and durability. Exceptions
// (errors) returned from the hook must abort the commit.
type Commit struct {
	Branch          Branch
	Timepoint       int64
	Rebase          bool
	EntitiesDeleted domain.ConceptSet

	// VersionsReplaced reports, per entity kind, the set of parent-branch
	// entity versions hidden on Branch as of this commit.
	VersionsReplaced func(kind EntityKind) domain.ConceptSet
}

// IsRebase reports whether this commit re-parents Branch onto a newer
// snapshot of its parent.
func (c Commit) IsRebase() bool { return c.Rebase }

// EntityKind distinguishes the entity families a branch's versions-replaced
// set can be queried for.
type EntityKind int

const (
	KindRelationship EntityKind = iota
	KindAxiomMember
	KindQueryConcept
)

// Scope selects which query selector a BranchCriteria was built with; the
// store adapters switch on it to decide which entity versions a query sees.
type Scope int

const (
	// ScopeBeforeCommit selects content visible on a branch before the
	// open commit.
	ScopeBeforeCommit Scope = iota
	// ScopeWithinCommit selects content changed within the open commit
	// only.
	ScopeWithinCommit
	// ScopeSinceBranchBase selects content changed on this branch since
	// its base (for rebase scope).
	ScopeSinceBranchBase
	// ScopeIncludingCommit selects content visible including the open
	// commit.
	ScopeIncludingCommit
)

// BranchCriteria is an opaque selector describing which entity versions a
// query should consider, matching one of the four required Scope selectors
// in §6. Concrete adapters (store/pg, store/memstore) interpret it however
// fits their backing representation.
type BranchCriteria struct {
	Branch Branch
	Scope  Scope
	Commit *Commit // the open commit, when Scope references it
}

// EntityStore is the generic per-entity-kind port every pipeline component
// depends on: streaming range-scan with sort, count-with-filter, batched
// upsert, batched end-version. T is one of domain.Relationship,
// domain.AxiomMember, or domain.QueryConcept.
type EntityStore[T any] interface {
	// Stream iterates entities matching criteria and the given concept-id
	// filter (nil means "no id filter"), invoking visit for each. For
	// domain.Relationship and domain.AxiomMember, implementations must sort
	// by (effectiveTime, active, start) per §4.6/§5's ordering guarantee,
	// nil effectiveTime sorting as domain.EffectiveTimeSentinel; other
	// entity kinds carry no such ordering requirement. Both store/pg and
	// store/memstore gather every matching version in memory and sort it
	// there before visiting; neither pages through results with a cursor or
	// keyset. Returning an error from visit stops iteration and is
	// propagated.
	Stream(ctx context.Context, criteria BranchCriteria, ids domain.ConceptSet, visit func(T) error) error

	// Count returns the number of entities matching criteria and ids
	// without materializing them.
	Count(ctx context.Context, criteria BranchCriteria, ids domain.ConceptSet) (int, error)

	// BatchUpsert persists rows in batches of at most batchSize, following
	// the underlying store's versioning semantics: a write at commit
	// supersedes any prior version visible on commit.Branch.
	BatchUpsert(ctx context.Context, commit Commit, rows []T, batchSize int) error

	// BatchEndVersion marks the entities named by ids as superseded as of
	// commit's timepoint, in batches of at most batchSize.
	BatchEndVersion(ctx context.Context, commit Commit, ids domain.ConceptSet, batchSize int) error

	// ClearVersionsReplaced clears every parent-branch entity version
	// hidden on branchPath, the write half of the versions-replaced
	// mechanism the rebase reconciler (C7) drives.
	ClearVersionsReplaced(ctx context.Context, branchPath string) error
}
