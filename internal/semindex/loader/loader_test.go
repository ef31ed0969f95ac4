package loader

import (
	"context"
	"testing"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
	"github.com/terminology-platform/semindex/internal/semindex/store/memstore"
)

func beforeCommitCriteria(commit store.Commit) store.BranchCriteria {
	return store.BranchCriteria{Branch: commit.Branch, Scope: store.ScopeBeforeCommit, Commit: &commit}
}

func seedQC(store *memstore.Store[*domain.QueryConcept], branch string, id domain.ConceptID, parents, ancestors []domain.ConceptID) {
	qc := domain.NewQueryConcept(id, domain.Stated)
	for _, p := range parents {
		qc.Parents.Add(p)
	}
	for _, a := range ancestors {
		qc.Ancestors.Add(a)
	}
	store.Insert(branch, 0, nil, qc)
}

func TestLoad_Incremental_DiamondLoadsExistingParentEdges(t *testing.T) {
	db := memstore.NewDB()
	qcStore := memstore.NewQueryConceptStore(db)

	// Existing projection: 1 (root), 2->1, 3->2.
	seedQC(qcStore, "MAIN", 1, nil, nil)
	seedQC(qcStore, "MAIN", 2, []domain.ConceptID{1}, []domain.ConceptID{1})
	seedQC(qcStore, "MAIN", 3, []domain.ConceptID{2}, []domain.ConceptID{2, 1})

	// Commit adds 4->2 and 4->3 (scenario 2, diamond): updateSource={4},
	// updateDestination={2,3}.
	commit := store.Commit{Branch: store.Branch{Path: "MAIN"}, Timepoint: 1}
	criteria := beforeCommitCriteria(commit)

	result, err := Load(context.Background(), criteria, domain.Stated,
		domain.NewConceptSet(4), domain.NewConceptSet(2, 3),
		qcStore, false, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The loaded graph should carry 2's and 3's existing parent edges so
	// replay can attach 4 on top and recompute its closure correctly.
	if node := result.Graph.Node(3); node == nil || !node.Parents.Has(2) {
		t.Fatalf("expected node 3 to carry its existing parent edge to 2")
	}
	if node := result.Graph.Node(2); node == nil || !node.Parents.Has(1) {
		t.Fatalf("expected node 2 to carry its existing parent edge to 1")
	}
}

func TestLoad_Rebuild_SeedsUpdatedConcepts(t *testing.T) {
	db := memstore.NewDB()
	rels := memstore.NewRelationshipStore(db)

	commit := store.Commit{Branch: store.Branch{Path: "MAIN"}, Timepoint: 1}
	rels.Insert("MAIN", 0, nil, domain.Relationship{
		SourceID: 3, DestinationID: 2, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicStated,
	})
	rels.Insert("MAIN", 0, nil, domain.Relationship{
		SourceID: 2, DestinationID: 1, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicStated,
	})

	result, err := Load(context.Background(), beforeCommitCriteria(commit), domain.Stated,
		nil, nil, nil, true, rels, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.UpdatedConcepts.Has(3) || !result.UpdatedConcepts.Has(2) {
		t.Fatalf("expected rebuild to seed updatedConcepts from every IS_A source, got %v", result.UpdatedConcepts)
	}
	closure := result.Graph
	if node := closure.Node(3); node == nil || !node.Parents.Has(2) {
		t.Fatalf("expected rebuild graph to contain 3->2 edge")
	}
}
