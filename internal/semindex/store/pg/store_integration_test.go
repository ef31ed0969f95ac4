package pg

import (
	"context"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

func postgresIntegrationEnabled() (string, bool) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	return dsn, dsn != ""
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn, ok := postgresIntegrationEnabled()
	if !ok {
		t.Skip("set TEST_POSTGRES_DSN to run the store/pg integration tests")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.AutoMigrate(&BranchRow{}, &ConceptRow{}, &RelationshipRow{}, &AxiomMemberRow{}, &QueryConceptRow{}, &VersionsReplacedRow{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("TRUNCATE branch_row, concept_row, relationship_row, axiom_member_row, query_concept_row, versions_replaced_row")
	})
	return db
}

func TestRelationshipStore_UpsertAndStreamWithinCommit(t *testing.T) {
	db := openTestDB(t)
	s := NewRelationshipStore(db)
	ctx := context.Background()

	commit := store.Commit{Branch: store.Branch{Path: "MAIN"}, Timepoint: 1}
	if err := s.BatchUpsert(ctx, commit, []domain.Relationship{
		{SourceID: 1, DestinationID: 2, TypeID: domain.ISA, Active: true, CharacteristicType: domain.CharacteristicInferred, Start: 1},
	}, 100); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var got []domain.Relationship
	criteria := store.BranchCriteria{Branch: commit.Branch, Scope: store.ScopeWithinCommit, Commit: &commit}
	if err := s.Stream(ctx, criteria, nil, func(r domain.Relationship) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(got) != 1 || got[0].DestinationID != 2 {
		t.Fatalf("expected one relationship to concept 2, got %+v", got)
	}
}

func TestQueryConceptStore_BranchInheritanceAndVersionsReplaced(t *testing.T) {
	db := openTestDB(t)
	s := NewQueryConceptStore(db)
	ctx := context.Background()

	if err := db.Create(&BranchRow{Path: "FEATURE", Parent: "MAIN"}).Error; err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	mainCommit := store.Commit{Branch: store.Branch{Path: "MAIN"}, Timepoint: 1}
	row := domain.NewQueryConcept(1, domain.Inferred)
	row.Parents.Add(2)
	if err := s.BatchUpsert(ctx, mainCommit, []*domain.QueryConcept{row}, 100); err != nil {
		t.Fatalf("upsert on MAIN: %v", err)
	}

	criteria := store.BranchCriteria{
		Branch: store.Branch{Path: "FEATURE"},
		Scope:  store.ScopeIncludingCommit,
		Commit: &store.Commit{Branch: store.Branch{Path: "FEATURE"}, Timepoint: 2},
	}
	var inherited *domain.QueryConcept
	if err := s.Stream(ctx, criteria, domain.NewConceptSet(1), func(qc *domain.QueryConcept) error {
		inherited = qc
		return nil
	}); err != nil {
		t.Fatalf("stream inherited: %v", err)
	}
	if inherited == nil || !inherited.Parents.Has(2) {
		t.Fatalf("expected FEATURE to inherit concept 1's MAIN row, got %+v", inherited)
	}

	featureCommit := store.Commit{Branch: store.Branch{Path: "FEATURE", Parent: "MAIN"}, Timepoint: 2}
	if err := s.BatchEndVersion(ctx, featureCommit, domain.NewConceptSet(1), 100); err != nil {
		t.Fatalf("end version on FEATURE: %v", err)
	}

	var afterHide *domain.QueryConcept
	criteria.Commit.Timepoint = 3
	if err := s.Stream(ctx, criteria, domain.NewConceptSet(1), func(qc *domain.QueryConcept) error {
		afterHide = qc
		return nil
	}); err != nil {
		t.Fatalf("stream after hide: %v", err)
	}
	if afterHide != nil {
		t.Fatalf("expected concept 1 hidden on FEATURE after BatchEndVersion, got %+v", afterHide)
	}

	if err := s.ClearVersionsReplaced(ctx, "FEATURE"); err != nil {
		t.Fatalf("clear versions replaced: %v", err)
	}
	var afterClear *domain.QueryConcept
	if err := s.Stream(ctx, criteria, domain.NewConceptSet(1), func(qc *domain.QueryConcept) error {
		afterClear = qc
		return nil
	}); err != nil {
		t.Fatalf("stream after clear: %v", err)
	}
	if afterClear == nil {
		t.Fatal("expected concept 1 visible again on FEATURE after ClearVersionsReplaced")
	}
}

func TestExistenceChecker_MissingOrInactive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Create(&ConceptRow{ID: 1, Active: true}).Error; err != nil {
		t.Fatalf("seed concept: %v", err)
	}
	if err := db.Create(&ConceptRow{ID: 2, Active: false}).Error; err != nil {
		t.Fatalf("seed concept: %v", err)
	}

	checker := NewExistenceChecker(db)
	missing, err := checker.MissingOrInactive(ctx, domain.NewConceptSet(1, 2, 3))
	if err != nil {
		t.Fatalf("missing or inactive: %v", err)
	}
	if !missing.Has(2) || !missing.Has(3) || missing.Has(1) {
		t.Fatalf("expected 2 and 3 missing/inactive, 1 active, got %v", missing)
	}
}
