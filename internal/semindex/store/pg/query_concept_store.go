package pg

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// QueryConceptStore is the gorm-backed
// store.EntityStore[*domain.QueryConcept] adapter — the projection table the
// writer (C6) maintains and the loader (C5) reads back from.
type QueryConceptStore struct {
	db *gorm.DB
}

func NewQueryConceptStore(db *gorm.DB) *QueryConceptStore { return &QueryConceptStore{db: db} }

func (s *QueryConceptStore) resolve(ctx context.Context, criteria store.BranchCriteria) ([]QueryConceptRow, error) {
	switch criteria.Scope {
	case store.ScopeWithinCommit:
		if criteria.Commit == nil {
			return nil, nil
		}
		var rows []QueryConceptRow
		err := s.db.WithContext(ctx).
			Where("branch_path = ? AND start_commit = ?", criteria.Commit.Branch.Path, criteria.Commit.Timepoint).
			Find(&rows).Error
		return rows, err

	case store.ScopeSinceBranchBase:
		if criteria.Commit == nil {
			return nil, nil
		}
		var rows []QueryConceptRow
		err := s.db.WithContext(ctx).
			Where("branch_path = ? AND start_commit <= ? AND (end_commit IS NULL OR end_commit > ?)",
				criteria.Branch.Path, criteria.Commit.Timepoint, criteria.Commit.Timepoint).
			Find(&rows).Error
		return rows, err

	default:
		return resolveVersioned(ctx, s.db, criteria,
			func(q QueryConceptRow) string { return q.ConceptIDForm },
			func(q QueryConceptRow) int64 { return q.ConceptID },
			func(q QueryConceptRow) string { return q.BranchPath },
			func(q QueryConceptRow) int64 { return q.StartCommit },
			func(q QueryConceptRow) *int64 { return q.EndCommit },
			kindQueryConcept,
		)
	}
}

func (s *QueryConceptStore) Stream(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet, visit func(*domain.QueryConcept) error) error {
	rows, err := s.resolve(ctx, criteria)
	if err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartCommit < rows[j].StartCommit })
	for _, row := range rows {
		if ids != nil && !ids.Has(domain.ConceptID(row.ConceptID)) {
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

func (s *QueryConceptStore) Count(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet) (int, error) {
	n := 0
	err := s.Stream(ctx, criteria, ids, func(*domain.QueryConcept) error { n++; return nil })
	return n, err
}

func (s *QueryConceptStore) BatchUpsert(ctx context.Context, commit store.Commit, rows []*domain.QueryConcept, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	persisted := make([]QueryConceptRow, 0, len(rows))
	for _, qc := range rows {
		persisted = append(persisted, queryConceptRowFrom(commit.Branch.Path, commit.Timepoint, qc))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "concept_id_form"}},
			DoUpdates: clause.AssignmentColumns([]string{"parents", "ancestors", "attribute_groups", "start_commit", "end_commit"}),
		}).
		CreateInBatches(persisted, batchSize).Error
}

func (s *QueryConceptStore) BatchEndVersion(ctx context.Context, commit store.Commit, ids domain.ConceptSet, batchSize int) error {
	if len(ids) == 0 {
		return nil
	}
	conceptIDs := make([]int64, 0, len(ids))
	for id := range ids {
		conceptIDs = append(conceptIDs, int64(id))
	}

	var ownBranchIDs []int64
	if err := s.db.WithContext(ctx).Model(&QueryConceptRow{}).
		Where("branch_path = ? AND concept_id IN ? AND end_commit IS NULL", commit.Branch.Path, conceptIDs).
		Pluck("concept_id", &ownBranchIDs).Error; err != nil {
		return err
	}
	if len(ownBranchIDs) > 0 {
		if err := s.db.WithContext(ctx).Model(&QueryConceptRow{}).
			Where("branch_path = ? AND concept_id IN ? AND end_commit IS NULL", commit.Branch.Path, ownBranchIDs).
			Update("end_commit", commit.Timepoint).Error; err != nil {
			return err
		}
	}

	own := make(map[int64]struct{}, len(ownBranchIDs))
	for _, id := range ownBranchIDs {
		own[id] = struct{}{}
	}
	var toHide []int64
	for _, id := range conceptIDs {
		if _, ok := own[id]; !ok {
			toHide = append(toHide, id)
		}
	}
	return hideVersionsReplaced(ctx, s.db, commit.Branch.Path, kindQueryConcept, toHide)
}

func (s *QueryConceptStore) ClearVersionsReplaced(ctx context.Context, branchPath string) error {
	return clearVersionsReplaced(ctx, s.db, branchPath, kindQueryConcept)
}
