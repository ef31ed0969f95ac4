package db

import (
	"fmt"

	"gorm.io/gorm"

	pg "github.com/terminology-platform/semindex/internal/semindex/store/pg"
)

// AutoMigrateAll creates or updates the tables backing the pg-backed store
// adapter: the concept/relationship/axiom content tables and the
// QueryConcept projection table the semantic index writer maintains.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&pg.BranchRow{},
		&pg.ConceptRow{},
		&pg.RelationshipRow{},
		&pg.AxiomMemberRow{},
		&pg.QueryConceptRow{},
		&pg.VersionsReplacedRow{},
	)
}

func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_relationship_branch_source
		ON relationship_row (branch_path, source_id)
		WHERE end_commit IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_relationship_branch_source: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_query_concept_branch_form
		ON query_concept_row (branch_path, form, concept_id)
		WHERE end_commit IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_query_concept_branch_form: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
