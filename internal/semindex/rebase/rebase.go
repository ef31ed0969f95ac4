// Package rebase implements the rebase reconciler (C7): on a branch-rebase
// commit it invalidates the branch's own projection rows so the normal
// pipeline can replay all branch-local content over the new parent base.
package rebase

import (
	"context"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// Reconcile implements §4.8 steps 1-2. Step 3 (building the change scope
// from all content present on the branch, against deletions taken from the
// branch's versions-replaced sets) is the orchestrator's responsibility,
// since it spans relationships and axioms as well as projection rows.
func Reconcile(ctx context.Context, commit store.Commit, queryConcepts store.EntityStore[*domain.QueryConcept]) error {
	branchAuthored := store.BranchCriteria{
		Branch: commit.Branch,
		Scope:  store.ScopeSinceBranchBase,
		Commit: &commit,
	}

	authoredIDs := domain.ConceptSet{}
	if err := queryConcepts.Stream(ctx, branchAuthored, nil, func(qc *domain.QueryConcept) error {
		authoredIDs.Add(qc.ConceptID)
		return nil
	}); err != nil {
		return err
	}

	if len(authoredIDs) > 0 {
		if err := queryConcepts.BatchEndVersion(ctx, commit, authoredIDs, 1000); err != nil {
			return err
		}
	}

	return queryConcepts.ClearVersionsReplaced(ctx, commit.Branch.Path)
}
