// Package memstore is an in-memory store.EntityStore[T] test double. It
// models just enough of a branch/commit versioned store — branch ancestry,
// per-branch authored versions, and per-branch versions-replaced hiding — to
// exercise the pipeline's component and end-to-end tests without a live
// Postgres instance, mirroring the store.EntityStore[T] port exactly.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// DB holds branch topology shared across every kind-specific Store built on
// top of it (relationships, axiom members, and query concepts all need to
// agree on the same branch ancestry).
type DB struct {
	mu       sync.Mutex
	branches map[string]string // path -> parent path ("" for root)
}

// NewDB returns a DB with only the root "MAIN" branch registered.
func NewDB() *DB {
	return &DB{branches: map[string]string{"MAIN": ""}}
}

// AddBranch registers a child branch under parent. Parent must already
// exist (MAIN always does).
func (d *DB) AddBranch(path, parent string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.branches[path] = parent
}

// ancestryChain returns [path, parent, grandparent, ..., root].
func (d *DB) ancestryChain(path string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain := []string{path}
	cur := path
	for {
		parent, ok := d.branches[cur]
		if !ok || parent == "" {
			return chain
		}
		chain = append(chain, parent)
		cur = parent
	}
}

type envelope[T any] struct {
	branch string
	start  int64
	end    *int64
	key    string
	id     domain.ConceptID
	entity T
}

// Store is a branch-aware, kind-specific in-memory EntityStore[T].
type Store[T any] struct {
	db        *DB
	mu        sync.Mutex
	records   []*envelope[T]
	hidden    map[string]domain.ConceptSet // viewing branch -> ids hidden from ancestor content
	keyFunc   func(T) string
	idFunc    func(T) domain.ConceptID
	orderFunc func(T) (effectiveTime *int32, active bool)
}

// New builds a kind-specific store. keyFunc must return a stable identity
// for an entity version (e.g. "{source}-{type}-{dest}-{group}" for
// relationships); idFunc returns the concept id used for id-set filtering
// and for BatchEndVersion/versions-replaced bookkeeping. orderFunc, when
// non-nil, reports the (effectiveTime, active) pair Stream sorts by ahead of
// start commit order (§4.6/§5); pass nil for entities with no such ordering
// requirement (QueryConcept projections).
func New[T any](db *DB, keyFunc func(T) string, idFunc func(T) domain.ConceptID, orderFunc func(T) (*int32, bool)) *Store[T] {
	return &Store[T]{
		db:        db,
		hidden:    map[string]domain.ConceptSet{},
		keyFunc:   keyFunc,
		idFunc:    idFunc,
		orderFunc: orderFunc,
	}
}

// Hide records that ids are invisible on branchPath even though they may be
// authored on an ancestor branch — the versions-replaced mechanism C7 relies
// on.
func (s *Store[T]) Hide(branchPath string, ids domain.ConceptSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.hidden[branchPath]
	if !ok {
		set = domain.ConceptSet{}
		s.hidden[branchPath] = set
	}
	for id := range ids {
		set[id] = struct{}{}
	}
}

// ClearHidden clears every versions-replaced marker for branchPath (C7 step 2).
func (s *Store[T]) ClearHidden(branchPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hidden, branchPath)
}

// ClearVersionsReplaced implements store.EntityStore[T].
func (s *Store[T]) ClearVersionsReplaced(ctx context.Context, branchPath string) error {
	s.ClearHidden(branchPath)
	return nil
}

// Insert directly appends a raw authored version, bypassing BatchUpsert's
// commit-scoped bookkeeping; used by tests seeding initial content.
func (s *Store[T]) Insert(branch string, start int64, end *int64, entity T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &envelope[T]{
		branch: branch,
		start:  start,
		end:    end,
		key:    s.keyFunc(entity),
		id:     s.idFunc(entity),
		entity: entity,
	})
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
		return true, 1<<62
	default:
		return true, 1 << 62
	}
}

// resolve computes the set of entity versions visible on criteria.Branch.Path
// as of the selected scope, resolving one version per key by walking the
// branch ancestry chain from the branch outward and honoring per-branch
// hidden (versions-replaced) ids.
func (s *Store[T]) resolve(criteria store.BranchCriteria) []*envelope[T] {
	switch criteria.Scope {
	case store.ScopeWithinCommit:
		if criteria.Commit == nil {
			return nil
		}
		var out []*envelope[T]
		for _, rec := range s.records {
			if rec.branch == criteria.Commit.Branch.Path && rec.start == criteria.Commit.Timepoint {
				out = append(out, rec)
			}
		}
		return out
	case store.ScopeSinceBranchBase:
		if criteria.Commit == nil {
			return nil
		}
		var out []*envelope[T]
		for _, rec := range s.records {
			if rec.branch == criteria.Branch.Path && rec.start <= criteria.Commit.Timepoint {
				if rec.end == nil || *rec.end > criteria.Commit.Timepoint {
					out = append(out, rec)
				}
			}
		}
		return out
	default: // ScopeBeforeCommit, ScopeIncludingCommit
		inclusive, asOf := asOfFor(criteria)
		chain := s.db.ancestryChain(criteria.Branch.Path)
		hiddenHere := s.hidden[criteria.Branch.Path]
		resolved := map[string]*envelope[T]{}
		seen := map[string]bool{}
		for _, level := range chain {
			byKey := map[string][]*envelope[T]{}
			for _, rec := range s.records {
				if rec.branch != level {
					continue
				}
				if seen[rec.key] {
					continue
				}
				if level != criteria.Branch.Path && hiddenHere.Has(rec.id) {
					continue
				}
				ok := rec.start < asOf
				if inclusive {
					ok = rec.start <= asOf
				}
				if !ok {
					continue
				}
				byKey[rec.key] = append(byKey[rec.key], rec)
			}
			for key, candidates := range byKey {
				sort.Slice(candidates, func(i, j int) bool { return candidates[i].start > candidates[j].start })
				best := candidates[0]
				seen[key] = true
				if best.end != nil && *best.end <= asOf {
					continue // most recent version at this level is already ended
				}
				resolved[key] = best
			}
		}
		out := make([]*envelope[T], 0, len(resolved))
		for _, rec := range resolved {
			out = append(out, rec)
		}
		return out
	}
}

// Stream implements store.EntityStore[T]. When orderFunc is set, matches are
// sorted by (effectiveTime, active, start) per §4.6/§5's ordering guarantee;
// otherwise by start commit order alone.
func (s *Store[T]) Stream(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet, visit func(T) error) error {
	s.mu.Lock()
	matches := s.resolve(criteria)
	s.mu.Unlock()

	if s.orderFunc != nil {
		sort.Slice(matches, func(i, j int) bool {
			iTime, iActive := s.orderFunc(matches[i].entity)
			jTime, jActive := s.orderFunc(matches[j].entity)
			iEff, jEff := domain.EffectiveTimeOrSentinel(iTime), domain.EffectiveTimeOrSentinel(jTime)
			if iEff != jEff {
				return iEff < jEff
			}
			if iActive != jActive {
				return !iActive && jActive // false (ended/inactive) before true (active)
			}
			return matches[i].start < matches[j].start
		})
	} else {
		sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	}
	for _, rec := range matches {
		if ids != nil && !ids.Has(rec.id) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(rec.entity); err != nil {
			return err
		}
	}
	return nil
}

// Count implements store.EntityStore[T].
func (s *Store[T]) Count(ctx context.Context, criteria store.BranchCriteria, ids domain.ConceptSet) (int, error) {
	n := 0
	err := s.Stream(ctx, criteria, ids, func(T) error {
		n++
		return nil
	})
	return n, err
}

// BatchUpsert implements store.EntityStore[T]. batchSize is accepted for
// interface conformance; the in-memory store has no real batching limit.
func (s *Store[T]) BatchUpsert(ctx context.Context, commit store.Commit, rows []T, batchSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.records = append(s.records, &envelope[T]{
			branch: commit.Branch.Path,
			start:  commit.Timepoint,
			end:    nil,
			key:    s.keyFunc(row),
			id:     s.idFunc(row),
			entity: row,
		})
	}
	return nil
}

// BatchEndVersion implements store.EntityStore[T]. Records authored on
// commit.Branch are ended in place; records inherited from an ancestor
// branch cannot be mutated from a descendant, so they are hidden instead —
// the same versions-replaced mechanism a real store exposes.
func (s *Store[T]) BatchEndVersion(ctx context.Context, commit store.Commit, ids domain.ConceptSet, batchSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	toHide := domain.ConceptSet{}
	for _, rec := range s.records {
		if !ids.Has(rec.id) {
			continue
		}
		if rec.branch == commit.Branch.Path && rec.end == nil {
			end := commit.Timepoint
			rec.end = &end
		} else if rec.branch != commit.Branch.Path {
			toHide.Add(rec.id)
		}
	}
	if len(toHide) > 0 {
		set, ok := s.hidden[commit.Branch.Path]
		if !ok {
			set = domain.ConceptSet{}
			s.hidden[commit.Branch.Path] = set
		}
		for id := range toHide {
			set[id] = struct{}{}
		}
	}
	return nil
}
