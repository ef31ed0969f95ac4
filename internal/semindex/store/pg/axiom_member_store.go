package pg

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// AxiomMemberStore is the gorm-backed store.EntityStore[domain.AxiomMember]
// adapter.
type AxiomMemberStore struct {
	db *gorm.DB
}

func NewAxiomMemberStore(db *gorm.DB) *AxiomMemberStore { return &AxiomMemberStore{db: db} }

func (s *AxiomMemberStore) resolve(ctx context.Context, criteria store.BranchCriteria) ([]AxiomMemberRow, error) {
	switch criteria.Scope {
	case store.ScopeWithinCommit:
		if criteria.Commit == nil {
			return nil, nil
		}
		var rows []AxiomMemberRow
		err := s.db.WithContext(ctx).
			Where("branch_path = ? AND start_commit = ?", criteria.Commit.Branch.Path, criteria.Commit.Timepoint).
			Find(&rows).Error
		return rows, err

	case store.ScopeSinceBranchBase:
		if criteria.Commit == nil {
			return nil, nil
		}
		var rows []AxiomMemberRow
		err := s.db.WithContext(ctx).
			Where("branch_path = ? AND start_commit <= ? AND (end_commit IS NULL OR end_commit > ?)",
				criteria.Branch.Path, criteria.Commit.Timepoint, criteria.Commit.Timepoint).
			Find(&rows).Error
		return rows, err

	default:
		return resolveVersioned(ctx, s.db, criteria,
			func(a AxiomMemberRow) string { return a.AxiomID },
			func(a AxiomMemberRow) int64 { return a.ReferencedConceptID },
			func(a AxiomMemberRow) string { return a.BranchPath },
			func(a AxiomMemberRow) int64 { return a.StartCommit },
			func(a AxiomMemberRow) *int64 { return a.EndCommit },
			kindAxiomMember,
		)
	}
}

func (s *AxiomMemberStore) Stream(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet, visit func(domain.AxiomMember) error) error {
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
		if ids != nil && !ids.Has(domain.ConceptID(row.ReferencedConceptID)) {
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

func (s *AxiomMemberStore) Count(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet) (int, error) {
	n := 0
	err := s.Stream(ctx, criteria, ids, func(domain.AxiomMember) error { n++; return nil })
	return n, err
}

func (s *AxiomMemberStore) BatchUpsert(ctx context.Context, commit store.Commit, rows []domain.AxiomMember, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	persisted := make([]AxiomMemberRow, 0, len(rows))
	for _, a := range rows {
		persisted = append(persisted, axiomMemberRowFrom(commit.Branch.Path, commit.Timepoint, a))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(persisted, batchSize).Error
}

func (s *AxiomMemberStore) BatchEndVersion(ctx context.Context, commit store.Commit, ids domain.ConceptSet, batchSize int) error {
	if len(ids) == 0 {
		return nil
	}
	conceptIDs := make([]int64, 0, len(ids))
	for id := range ids {
		conceptIDs = append(conceptIDs, int64(id))
	}

	var ownBranchIDs []int64
	if err := s.db.WithContext(ctx).Model(&AxiomMemberRow{}).
		Where("branch_path = ? AND referenced_concept_id IN ? AND end_commit IS NULL", commit.Branch.Path, conceptIDs).
		Pluck("referenced_concept_id", &ownBranchIDs).Error; err != nil {
		return err
	}
	if len(ownBranchIDs) > 0 {
		if err := s.db.WithContext(ctx).Model(&AxiomMemberRow{}).
			Where("branch_path = ? AND referenced_concept_id IN ? AND end_commit IS NULL", commit.Branch.Path, ownBranchIDs).
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
	return hideVersionsReplaced(ctx, s.db, commit.Branch.Path, kindAxiomMember, toHide)
}

func (s *AxiomMemberStore) ClearVersionsReplaced(ctx context.Context, branchPath string) error {
	return clearVersionsReplaced(ctx, s.db, branchPath, kindAxiomMember)
}
