package pg

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VersionsReplacedRow records, per (branch, entity kind), a concept id whose
// ancestor-branch version must not be inherited — the durable form of the
// per-branch "hidden" set store/memstore keeps in memory. BatchEndVersion on
// an inherited row writes one of these instead of mutating a row it doesn't
// own; rebase reconciliation (C7) clears them for a branch once its own
// content has replayed over the new parent base.
type VersionsReplacedRow struct {
	BranchPath string `gorm:"primaryKey;column:branch_path"`
	Kind       int16  `gorm:"primaryKey"`
	ConceptID  int64  `gorm:"primaryKey;column:concept_id"`
}

func (VersionsReplacedRow) TableName() string { return "versions_replaced_row" }

func hideVersionsReplaced(ctx context.Context, db *gorm.DB, branchPath string, kind int16, conceptIDs []int64) error {
	if len(conceptIDs) == 0 {
		return nil
	}
	rows := make([]VersionsReplacedRow, 0, len(conceptIDs))
	for _, id := range conceptIDs {
		rows = append(rows, VersionsReplacedRow{BranchPath: branchPath, Kind: kind, ConceptID: id})
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 1000).Error
}

func clearVersionsReplaced(ctx context.Context, db *gorm.DB, branchPath string, kind int16) error {
	return db.WithContext(ctx).Where("branch_path = ? AND kind = ?", branchPath, kind).Delete(&VersionsReplacedRow{}).Error
}

func hiddenConceptIDs(ctx context.Context, db *gorm.DB, branchPath string, kind int16) (map[int64]struct{}, error) {
	var rows []VersionsReplacedRow
	if err := db.WithContext(ctx).Where("branch_path = ? AND kind = ?", branchPath, kind).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		out[r.ConceptID] = struct{}{}
	}
	return out, nil
}

const (
	kindRelationship int16 = iota
	kindAxiomMember
	kindQueryConcept
)
