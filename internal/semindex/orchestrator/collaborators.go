package orchestrator

import (
	"context"

	"github.com/terminology-platform/semindex/internal/domain"
)

// ConceptExistenceChecker answers "which of these concept ids are missing
// or inactive" against the underlying concept catalogue — a table this
// module does not own (the versioned document store is out of scope). It
// backs the IntegrityWarning check in §7: requiredActiveConcepts that
// resolve to missing or inactive concepts are logged at warn level and do
// not abort the commit.
type ConceptExistenceChecker interface {
	MissingOrInactive(ctx context.Context, ids domain.ConceptSet) (domain.ConceptSet, error)
}

// NoExistenceCheck is the default ConceptExistenceChecker: it reports no
// integrity problems. Used when a host application has no concept catalogue
// wired in yet.
type NoExistenceCheck struct{}

func (NoExistenceCheck) MissingOrInactive(context.Context, domain.ConceptSet) (domain.ConceptSet, error) {
	return nil, nil
}

// Mirror receives the rows a commit just persisted so a secondary
// projection (internal/semindex/neo4jmirror) can stay in sync. It is
// invoked best-effort after a successful write; a Mirror failure must never
// abort the commit.
type Mirror interface {
	MirrorBatch(ctx context.Context, form domain.Form, branchPath string, rows []*domain.QueryConcept, deleted domain.ConceptSet) error
}
