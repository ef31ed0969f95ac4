package pg

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// RelationshipStore is the gorm-backed store.EntityStore[domain.Relationship]
// adapter.
type RelationshipStore struct {
	db *gorm.DB
}

func NewRelationshipStore(db *gorm.DB) *RelationshipStore { return &RelationshipStore{db: db} }

func (s *RelationshipStore) key(r RelationshipRow) string {
	return fmt.Sprintf("%d-%d-%d-%d", r.SourceID, r.TypeID, r.DestinationID, r.RelGroup)
}

func (s *RelationshipStore) resolve(ctx context.Context, criteria store.BranchCriteria) ([]RelationshipRow, error) {
	switch criteria.Scope {
	case store.ScopeWithinCommit:
		if criteria.Commit == nil {
			return nil, nil
		}
		var rows []RelationshipRow
		err := s.db.WithContext(ctx).
			Where("branch_path = ? AND start_commit = ?", criteria.Commit.Branch.Path, criteria.Commit.Timepoint).
			Find(&rows).Error
		return rows, err

	case store.ScopeSinceBranchBase:
		if criteria.Commit == nil {
			return nil, nil
		}
		var rows []RelationshipRow
		err := s.db.WithContext(ctx).
			Where("branch_path = ? AND start_commit <= ? AND (end_commit IS NULL OR end_commit > ?)",
				criteria.Branch.Path, criteria.Commit.Timepoint, criteria.Commit.Timepoint).
			Find(&rows).Error
		return rows, err

	default: // ScopeBeforeCommit, ScopeIncludingCommit
		return resolveVersioned(ctx, s.db, criteria,
			s.key,
			func(r RelationshipRow) int64 { return r.SourceID },
			func(r RelationshipRow) string { return r.BranchPath },
			func(r RelationshipRow) int64 { return r.StartCommit },
			func(r RelationshipRow) *int64 { return r.EndCommit },
			kindRelationship,
		)
	}
}

func (s *RelationshipStore) Stream(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet, visit func(domain.Relationship) error) error {
	rows, err := s.resolve(ctx, criteria)
	if err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool {
		iEff, jEff := domain.EffectiveTimeOrSentinel(rows[i].EffectiveTime), domain.EffectiveTimeOrSentinel(rows[j].EffectiveTime)
		if iEff != jEff {
			return iEff < jEff
		}
		if rows[i].Active != rows[j].Active {
			return !rows[i].Active && rows[j].Active
		}
		return rows[i].StartCommit < rows[j].StartCommit
	})
	for _, row := range rows {
		if ids != nil && !ids.Has(domain.ConceptID(row.SourceID)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(row.toDomain()); err != nil {
			return err
		}
	}
	return nil
}

func (s *RelationshipStore) Count(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet) (int, error) {
	n := 0
	err := s.Stream(ctx, criteria, ids, func(domain.Relationship) error { n++; return nil })
	return n, err
}

func (s *RelationshipStore) BatchUpsert(ctx context.Context, commit store.Commit, rows []domain.Relationship, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	persisted := make([]RelationshipRow, 0, len(rows))
	for _, r := range rows {
		persisted = append(persisted, relationshipRowFrom(commit.Branch.Path, commit.Timepoint, r))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(persisted, batchSize).Error
}

// BatchEndVersion ends rows authored directly on commit.Branch in place; ids
// that only resolve to an ancestor-branch version are recorded as
// versions-replaced instead, since a descendant branch must never mutate
// content it doesn't own.
func (s *RelationshipStore) BatchEndVersion(ctx context.Context, commit store.Commit, ids domain.ConceptSet, batchSize int) error {
	if len(ids) == 0 {
		return nil
	}
	sourceIDs := make([]int64, 0, len(ids))
	for id := range ids {
		sourceIDs = append(sourceIDs, int64(id))
	}

	var ownBranchIDs []int64
	if err := s.db.WithContext(ctx).Model(&RelationshipRow{}).
		Where("branch_path = ? AND source_id IN ? AND end_commit IS NULL", commit.Branch.Path, sourceIDs).
		Pluck("source_id", &ownBranchIDs).Error; err != nil {
		return err
	}
	if len(ownBranchIDs) > 0 {
		if err := s.db.WithContext(ctx).Model(&RelationshipRow{}).
			Where("branch_path = ? AND source_id IN ? AND end_commit IS NULL", commit.Branch.Path, ownBranchIDs).
			Update("end_commit", commit.Timepoint).Error; err != nil {
			return err
		}
	}

	own := make(map[int64]struct{}, len(ownBranchIDs))
	for _, id := range ownBranchIDs {
		own[id] = struct{}{}
	}
	var toHide []int64
	for _, id := range sourceIDs {
		if _, ok := own[id]; !ok {
			toHide = append(toHide, id)
		}
	}
	return hideVersionsReplaced(ctx, s.db, commit.Branch.Path, kindRelationship, toHide)
}

// ClearVersionsReplaced implements store.EntityStore[domain.Relationship].
// Relationships are never merge-reconciled directly by C7 (only QueryConcept
// rows are); this exists purely for interface conformance so a future
// rebase-adjacent feature has somewhere to hook in.
func (s *RelationshipStore) ClearVersionsReplaced(ctx context.Context, branchPath string) error {
	return clearVersionsReplaced(ctx, s.db, branchPath, kindRelationship)
}
