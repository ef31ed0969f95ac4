package pg

import (
	"context"

	"gorm.io/gorm"

	"github.com/terminology-platform/semindex/internal/domain"
)

// ExistenceChecker implements orchestrator.ConceptExistenceChecker against
// the local concept_row mirror. A host application that owns its own
// concept catalogue should wire its own checker instead; this one exists so
// the module is self-sufficient when no such catalogue is available.
type ExistenceChecker struct {
	db *gorm.DB
}

func NewExistenceChecker(db *gorm.DB) *ExistenceChecker { return &ExistenceChecker{db: db} }

func (c *ExistenceChecker) MissingOrInactive(ctx context.Context, ids domain.ConceptSet) (domain.ConceptSet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idList := make([]int64, 0, len(ids))
	for id := range ids {
		idList = append(idList, int64(id))
	}

	var active []int64
	if err := c.db.WithContext(ctx).Model(&ConceptRow{}).
		Where("id IN ? AND active", idList).
		Pluck("id", &active).Error; err != nil {
		return nil, err
	}
	activeSet := make(map[int64]struct{}, len(active))
	for _, id := range active {
		activeSet[id] = struct{}{}
	}

	missing := domain.ConceptSet{}
	for id := range ids {
		if _, ok := activeSet[int64(id)]; !ok {
			missing.Add(id)
		}
	}
	return missing, nil
}
