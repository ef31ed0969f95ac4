// Package writer implements the projection writer (C6): it determines which
// concepts' projection rows must be rewritten, merges the recomputed
// closures and attribute groups against the stored projection (or builds a
// fresh row), marks empty-parent non-root rows for deletion, and persists
// the result in batches.
package writer

import (
	"context"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/attrchange"
	"github.com/terminology-platform/semindex/internal/semindex/graph"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// DefaultBatchSize matches the source algorithm's fixed batch size.
const DefaultBatchSize = 1000

// Outcome reports what Write persisted, mainly for tests and for the
// best-effort graph-mirror hook to consume.
type Outcome struct {
	Upserted []*domain.QueryConcept
	Deleted  domain.ConceptSet
}

// Options bundles Write's inputs beyond the graph and accumulator.
type Options struct {
	Form          domain.Form
	Graph         *graph.Builder
	Attributes    *attrchange.Accumulator
	NewGraph      bool
	Rebuild       bool
	BranchPath    string
	Commit        store.Commit
	QueryConcepts store.EntityStore[*domain.QueryConcept]
	BatchSize     int
}

// Write implements §4.7.
func Write(ctx context.Context, opts Options) (*Outcome, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	idsToWrite := domain.ConceptSet{}
	for _, node := range opts.Graph.Nodes() {
		if opts.NewGraph || opts.Rebuild ||
			opts.Graph.IsAncestorOrSelfUpdated(node, opts.BranchPath) ||
			opts.Attributes.Has(node.ConceptID) {
			idsToWrite.Add(node.ConceptID)
		}
	}
	for _, id := range opts.Attributes.ConceptIDs() {
		idsToWrite.Add(id)
	}

	// A full rebuild produces every row fresh rather than merging onto
	// whatever happened to be stored previously, so it skips the existing
	// lookup entirely.
	existing := map[domain.ConceptID]*domain.QueryConcept{}
	if !opts.Rebuild {
		existingCriteria := store.BranchCriteria{Branch: store.Branch{Path: opts.BranchPath}, Scope: store.ScopeBeforeCommit, Commit: &opts.Commit}
		if err := opts.QueryConcepts.Stream(ctx, existingCriteria, idsToWrite, func(qc *domain.QueryConcept) error {
			if qc.Form != opts.Form {
				return nil
			}
			existing[qc.ConceptID] = qc
			return nil
		}); err != nil {
			return nil, err
		}
	}

	toUpsert := make([]*domain.QueryConcept, 0, len(idsToWrite))
	toDelete := domain.ConceptSet{}

	for id := range idsToWrite {
		node := opts.Graph.Node(id)
		row, ok := existing[id]
		if ok {
			row = cloneRow(row)
			if node != nil {
				row.Parents = domain.ConceptSet{}
				for p := range node.Parents {
					row.Parents.Add(p)
				}
				row.Ancestors = opts.Graph.TransitiveClosure(node)
			}
			row.AttributeGroups = opts.Attributes.Replay(id, row.AttributeGroups)
		} else {
			row = domain.NewQueryConcept(id, opts.Form)
			if node != nil {
				for p := range node.Parents {
					row.Parents.Add(p)
				}
				row.Ancestors = opts.Graph.TransitiveClosure(node)
			}
			row.AttributeGroups = opts.Attributes.Replay(id, nil)
		}

		if len(row.Parents) == 0 && !domain.IsRoot(id) {
			toDelete.Add(id)
			continue
		}
		toUpsert = append(toUpsert, row)
	}

	for i := 0; i < len(toUpsert); i += batchSize {
		end := i + batchSize
		if end > len(toUpsert) {
			end = len(toUpsert)
		}
		if err := opts.QueryConcepts.BatchUpsert(ctx, opts.Commit, toUpsert[i:end], batchSize); err != nil {
			return nil, err
		}
	}
	if len(toDelete) > 0 {
		if err := opts.QueryConcepts.BatchEndVersion(ctx, opts.Commit, toDelete, batchSize); err != nil {
			return nil, err
		}
	}

	return &Outcome{Upserted: toUpsert, Deleted: toDelete}, nil
}

func cloneRow(row *domain.QueryConcept) *domain.QueryConcept {
	clone := *row
	clone.Parents = domain.ConceptSet{}
	for id := range row.Parents {
		clone.Parents.Add(id)
	}
	clone.Ancestors = domain.ConceptSet{}
	for id := range row.Ancestors {
		clone.Ancestors.Add(id)
	}
	clone.AttributeGroups = row.AttributeGroups.Clone()
	return &clone
}
