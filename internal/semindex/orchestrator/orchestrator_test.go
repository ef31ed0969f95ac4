package orchestrator

import (
	"context"
	"testing"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/axiom"
	"github.com/terminology-platform/semindex/internal/semindex/store"
	"github.com/terminology-platform/semindex/internal/semindex/store/memstore"
)

// Most scenarios here drive relationships directly against the inferred
// form; the stated-form pipeline runs too on each commit but, with no axiom
// members and no IS_A relationships tagged CharacteristicStated, resolves to
// an empty change set. The axiom-member test drives the stated form instead.
func newHarness() (*Orchestrator, *memstore.DB, *memstore.Store[domain.Relationship], *memstore.Store[domain.AxiomMember], *memstore.Store[*domain.QueryConcept]) {
	db := memstore.NewDB()
	rels := memstore.NewRelationshipStore(db)
	axioms := memstore.NewAxiomMemberStore(db)
	qcs := memstore.NewQueryConceptStore(db)
	o := New(Dependencies{
		Relationships: rels,
		Axioms:        axioms,
		QueryConcepts: qcs,
	}, Config{SemanticIndexingEnabled: true, BatchSaveSize: 1000}, nil)
	return o, db, rels, axioms, qcs
}

func mainCommit(timepoint int64) store.Commit {
	return store.Commit{
		Branch:    store.Branch{Path: "MAIN"},
		Timepoint: timepoint,
	}
}

func fetchRow(t *testing.T, qcs *memstore.Store[*domain.QueryConcept], branch string, asOf int64, id domain.ConceptID, form domain.Form) *domain.QueryConcept {
	t.Helper()
	criteria := store.BranchCriteria{
		Branch: store.Branch{Path: branch},
		Scope:  store.ScopeIncludingCommit,
		Commit: &store.Commit{Branch: store.Branch{Path: branch}, Timepoint: asOf},
	}
	var found *domain.QueryConcept
	err := qcs.Stream(context.Background(), criteria, domain.NewConceptSet(id), func(qc *domain.QueryConcept) error {
		if qc.Form == form {
			found = qc
		}
		return nil
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	return found
}

// TestPreCommitCompletion_SingleChain covers scenario 1: A -ISA-> B, commit,
// then B -ISA-> C in a later commit; A's ancestors must grow to include C.
func TestPreCommitCompletion_SingleChain(t *testing.T) {
	o, _, rels, _, qcs := newHarness()
	ctx := context.Background()

	c1 := mainCommit(1)
	rels.BatchUpsert(ctx, c1, []domain.Relationship{
		{SourceID: 1, DestinationID: 2, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 1, 1, domain.Inferred)
	if row == nil || !row.Ancestors.Has(2) {
		t.Fatalf("expected concept 1 ancestors to include 2 after commit 1, got %+v", row)
	}

	c2 := mainCommit(2)
	rels.BatchUpsert(ctx, c2, []domain.Relationship{
		{SourceID: 2, DestinationID: 3, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 2},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c2); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	row = fetchRow(t, qcs, "MAIN", 2, 1, domain.Inferred)
	if row == nil || !row.Ancestors.Has(3) {
		t.Fatalf("expected concept 1 ancestors to include 3 after commit 2, got %+v", row)
	}
}

// TestPreCommitCompletion_ReparentDiamond covers scenario 3: a child moved
// from parent 20 to its sibling 40 must drop the old parent and pick up the
// new parent together with their shared ancestor 30.
func TestPreCommitCompletion_ReparentDiamond(t *testing.T) {
	o, _, rels, _, qcs := newHarness()
	ctx := context.Background()

	c1 := mainCommit(1)
	rels.BatchUpsert(ctx, c1, []domain.Relationship{
		{SourceID: 10, DestinationID: 20, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
		{SourceID: 20, DestinationID: 30, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
		{SourceID: 40, DestinationID: 30, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	c2 := mainCommit(2)
	c2.EntitiesDeleted = domain.NewConceptSet(10) // the 10->20 edge is genuinely removed, not replaced
	end := int64(2)
	rels.BatchUpsert(ctx, c2, []domain.Relationship{
		{SourceID: 10, DestinationID: 20, TypeID: domain.ISA, Active: false, CharacteristicType: domain.CharacteristicInferred, Start: 2, End: &end},
		{SourceID: 10, DestinationID: 40, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 2},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c2); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 2, 10, domain.Inferred)
	if row == nil {
		t.Fatal("expected concept 10 row after reparent")
	}
	if row.Parents.Has(20) {
		t.Fatalf("expected old parent 20 dropped, got parents %v", row.Parents)
	}
	if !row.Parents.Has(40) || !row.Ancestors.Has(30) {
		t.Fatalf("expected new parent 40 and ancestor 30, got parents=%v ancestors=%v", row.Parents, row.Ancestors)
	}
}

// TestPreCommitCompletion_EmptyParentsDeletion covers scenario 4: retiring a
// concept's only parent edge with no replacement must delete its projection
// row rather than leave it with an empty parent set.
func TestPreCommitCompletion_EmptyParentsDeletion(t *testing.T) {
	o, _, rels, _, qcs := newHarness()
	ctx := context.Background()

	c1 := mainCommit(1)
	rels.BatchUpsert(ctx, c1, []domain.Relationship{
		{SourceID: 100, DestinationID: 200, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	c2 := mainCommit(2)
	c2.EntitiesDeleted = domain.NewConceptSet(100) // the only parent edge is genuinely removed, not replaced
	end := int64(2)
	rels.BatchUpsert(ctx, c2, []domain.Relationship{
		{SourceID: 100, DestinationID: 200, TypeID: domain.ISA, Active: false, CharacteristicType: domain.CharacteristicInferred, Start: 2, End: &end},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c2); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 2, 100, domain.Inferred)
	if row != nil {
		t.Fatalf("expected concept 100's projection row deleted, got %+v", row)
	}
}

// TestPreCommitCompletion_GroupedAttribute covers scenario 5: a grouped
// non-hierarchical attribute must appear in the projection row's
// AttributeGroups without affecting the parent/ancestor closure.
func TestPreCommitCompletion_GroupedAttribute(t *testing.T) {
	o, _, rels, _, qcs := newHarness()
	ctx := context.Background()

	c1 := mainCommit(1)
	rels.BatchUpsert(ctx, c1, []domain.Relationship{
		{SourceID: 500, DestinationID: 501, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
		{SourceID: 500, DestinationID: 700, TypeID: 900, Group: 1, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 1, 500, domain.Inferred)
	if row == nil {
		t.Fatal("expected concept 500 row")
	}
	if _, ok := row.AttributeGroups[1][900][700]; !ok {
		t.Fatalf("expected attribute group binding, got %+v", row.AttributeGroups)
	}
}

// TestPreCommitCompletion_EmptyChangeSet covers the EmptyChangeSet
// early-success path: a commit that changes no relationships or axioms must
// not error.
func TestPreCommitCompletion_EmptyChangeSet(t *testing.T) {
	o, _, _, _, _ := newHarness()
	ctx := context.Background()

	c1 := mainCommit(1)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("expected empty change set to succeed, got %v", err)
	}
}

// TestPreCommitCompletion_Disabled verifies the Disabled short-circuit never
// touches the store.
func TestPreCommitCompletion_Disabled(t *testing.T) {
	db := memstore.NewDB()
	rels := memstore.NewRelationshipStore(db)
	axioms := memstore.NewAxiomMemberStore(db)
	qcs := memstore.NewQueryConceptStore(db)
	o := New(Dependencies{Relationships: rels, Axioms: axioms, QueryConcepts: qcs}, Config{SemanticIndexingEnabled: false}, nil)

	ctx := context.Background()
	c1 := mainCommit(1)
	rels.BatchUpsert(ctx, c1, []domain.Relationship{
		{SourceID: 1, DestinationID: 2, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("expected disabled orchestrator to succeed, got %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 1, 1, domain.Inferred)
	if row != nil {
		t.Fatalf("expected no projection row while disabled, got %+v", row)
	}
}

// TestRebuild_ProducesFreshProjection covers the rebuild admin entry point:
// a rebuild over MAIN's full committed content reconstructs every row from
// scratch, matching what an incremental run would have converged to.
func TestRebuild_ProducesFreshProjection(t *testing.T) {
	o, _, rels, _, qcs := newHarness()
	ctx := context.Background()

	c1 := mainCommit(1)
	rels.BatchUpsert(ctx, c1, []domain.Relationship{
		{SourceID: 1, DestinationID: 2, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
		{SourceID: 2, DestinationID: 3, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)

	rebuildCommit := mainCommit(2)
	if err := o.Rebuild(ctx, rebuildCommit); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 2, 1, domain.Inferred)
	if row == nil || !row.Ancestors.Has(2) || !row.Ancestors.Has(3) {
		t.Fatalf("expected rebuild to derive full ancestor closure, got %+v", row)
	}
}

// TestPreCommitCompletion_Rebase covers the rebase pipeline: reconciling a
// feature branch must end its branch-authored rows and clear the
// versions-replaced markers before the incremental pass reruns.
func TestPreCommitCompletion_Rebase(t *testing.T) {
	o, db, rels, _, qcs := newHarness()
	ctx := context.Background()

	main1 := mainCommit(1)
	rels.BatchUpsert(ctx, main1, []domain.Relationship{
		{SourceID: 1, DestinationID: 2, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, main1); err != nil {
		t.Fatalf("main commit: %v", err)
	}

	db.AddBranch("FEATURE", "MAIN")
	featureCommit := store.Commit{Branch: store.Branch{Path: "FEATURE", Parent: "MAIN"}, Timepoint: 2}
	rels.BatchUpsert(ctx, featureCommit, []domain.Relationship{
		{SourceID: 5, DestinationID: 1, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 2},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, featureCommit); err != nil {
		t.Fatalf("feature commit: %v", err)
	}

	rebaseCommit := store.Commit{Branch: store.Branch{Path: "FEATURE", Parent: "MAIN"}, Timepoint: 3, Rebase: true}
	if err := o.PreCommitCompletion(ctx, rebaseCommit); err != nil {
		t.Fatalf("rebase commit: %v", err)
	}

	row := fetchRow(t, qcs, "FEATURE", 3, 5, domain.Inferred)
	if row == nil || !row.Parents.Has(1) {
		t.Fatalf("expected concept 5 to still resolve on FEATURE after rebase, got %+v", row)
	}
}

// axiomISAConverter mirrors an axiom member's own Active/End/EffectiveTime
// onto the ISA fragment it converts to, the way a real conversion service
// would stamp version metadata through.
type axiomISAConverter struct{ dest domain.ConceptID }

func (c axiomISAConverter) Convert(member domain.AxiomMember) (*axiom.Representation, error) {
	source := member.ReferencedConceptID
	return &axiom.Representation{
		LeftHandSideNamedConcept: &source,
		RightHandSideRelationships: []domain.Relationship{
			{TypeID: domain.ISA, DestinationID: c.dest, Active: member.Active, EffectiveTime: member.EffectiveTime, End: member.End},
		},
	}, nil
}

// TestPreCommitCompletion_AxiomReplacedVersionIgnoredWithinCommit covers the
// delete-then-reintroduce ambiguity: a commit carries both a stale ended
// axiom version and its active reintroduction, and the stale version's
// nominal effective time is later than the reintroduction's. Since the
// stale version's id was never marked deleted for this commit, it must be
// ignored as replaced rather than treated as a removal, regardless of the
// order the two versions are streamed in.
func TestPreCommitCompletion_AxiomReplacedVersionIgnoredWithinCommit(t *testing.T) {
	db := memstore.NewDB()
	rels := memstore.NewRelationshipStore(db)
	axioms := memstore.NewAxiomMemberStore(db)
	qcs := memstore.NewQueryConceptStore(db)
	o := New(Dependencies{
		Relationships: rels,
		Axioms:        axioms,
		QueryConcepts: qcs,
		Converter:     axiomISAConverter{dest: 850},
	}, Config{SemanticIndexingEnabled: true, BatchSaveSize: 1000}, nil)

	ctx := context.Background()
	c1 := mainCommit(1)
	stale := int32(20200601)
	staleEnd := int64(1)
	current := int32(20200101)
	axioms.BatchUpsert(ctx, c1, []domain.AxiomMember{
		{ID: "ax1", ReferencedConceptID: 800, Active: false, EffectiveTime: &stale, Start: 1, End: &staleEnd},
		{ID: "ax1", ReferencedConceptID: 800, Active: true, EffectiveTime: &current, Start: 1},
	}, 1000)
	if err := o.PreCommitCompletion(ctx, c1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	row := fetchRow(t, qcs, "MAIN", 1, 800, domain.Stated)
	if row == nil || !row.Parents.Has(850) {
		t.Fatalf("expected the reintroduced axiom version's parent edge to survive the stale ended version, got %+v", row)
	}
}
