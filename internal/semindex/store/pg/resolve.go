package pg

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/terminology-platform/semindex/internal/semindex/store"
)

type tableNamer interface{ TableName() string }

// resolveVersioned implements the same branch/commit visibility algorithm as
// store/memstore's Store[T].resolve: walk the branch ancestry chain from the
// query branch outward, and at each level resolve the most-recent eligible
// version per key, skipping keys already resolved at a closer level and ids
// hidden-from-this-branch (versions-replaced) at inherited levels. It fetches
// every candidate row across the whole ancestry chain in one query and
// performs the per-level grouping in application code; a high-volume
// deployment would push this into a recursive CTE, but the row counts this
// module deals with (branch ancestry depth, not full table scans — only rows
// on branches in the chain are fetched) keep this tractable.
func resolveVersioned[T tableNamer](
	ctx context.Context,
	db *gorm.DB,
	criteria store.BranchCriteria,
	keyFunc func(T) string,
	idFunc func(T) int64,
	branchFunc func(T) string,
	startFunc func(T) int64,
	endFunc func(T) *int64,
	kind int16,
) ([]T, error) {
	var zero T
	chain, err := ancestryChain(ctx, db, criteria.Branch.Path)
	if err != nil {
		return nil, err
	}
	hidden, err := hiddenConceptIDs(ctx, db, criteria.Branch.Path, kind)
	if err != nil {
		return nil, err
	}

	var all []T
	if err := db.WithContext(ctx).Table(zero.TableName()).Where("branch_path IN ?", chain).Find(&all).Error; err != nil {
		return nil, err
	}

	inclusive, asOf := asOfFor(criteria)
	resolved := map[string]T{}
	seen := map[string]bool{}
	for _, level := range chain {
		byKey := map[string][]T{}
		for _, row := range all {
			if branchFunc(row) != level {
				continue
			}
			k := keyFunc(row)
			if seen[k] {
				continue
			}
			if level != criteria.Branch.Path {
				if _, isHidden := hidden[idFunc(row)]; isHidden {
					continue
				}
			}
			ok := startFunc(row) < asOf
			if inclusive {
				ok = startFunc(row) <= asOf
			}
			if !ok {
				continue
			}
			byKey[k] = append(byKey[k], row)
		}
		for k, candidates := range byKey {
			sort.Slice(candidates, func(i, j int) bool { return startFunc(candidates[i]) > startFunc(candidates[j]) })
			best := candidates[0]
			seen[k] = true
			if e := endFunc(best); e != nil && *e <= asOf {
				continue // most recent version at this level is already ended
			}
			resolved[k] = best
		}
	}

	out := make([]T, 0, len(resolved))
	for _, r := range resolved {
		out = append(out, r)
	}
	return out, nil
}

func asOfFor(criteria store.BranchCriteria) (inclusive bool, timepoint int64) {
	switch criteria.Scope {
	case store.ScopeBeforeCommit:
		if criteria.Commit != nil {
			return false, criteria.Commit.Timepoint
		}
		return false, 0
	case store.ScopeIncludingCommit:
		if criteria.Commit != nil {
			return true, criteria.Commit.Timepoint
		}
		return true, 1 << 62
	default:
		return true, 1 << 62
	}
}
