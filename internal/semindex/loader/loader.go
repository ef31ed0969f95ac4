// Package loader implements the existing-graph loader (C5): it loads just
// enough of the prior branch's projection into a graph.Builder to correctly
// re-derive the transitive closures of every updated concept, including
// descendants whose closure might shrink or move and multiple-inheritance
// "alternative ancestor" diamonds.
package loader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/axiom"
	"github.com/terminology-platform/semindex/internal/semindex/graph"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// Result is the loaded graph plus, for a rebuild run, the full set of
// concept ids seen as IS_A sources (since a rebuild has no prior change-set
// to seed updatedConcepts from).
type Result struct {
	Graph           *graph.Builder
	UpdatedConcepts domain.ConceptSet // only populated when rebuild == true
}

// Load implements §4.5. For an incremental run it walks the existing
// projection to assemble nodesToLoad and runs the two-pass
// alternative-ancestor load. For a full rebuild it instead streams every
// active IS_A relationship (and, for STATED, axiom IS_A fragment) directly.
func Load(
	ctx context.Context,
	criteria store.BranchCriteria,
	form domain.Form,
	updateSource, updateDestination domain.ConceptSet,
	queryConcepts store.EntityStore[*domain.QueryConcept],
	rebuild bool,
	relationships store.EntityStore[domain.Relationship],
	axioms store.EntityStore[domain.AxiomMember],
	converter axiom.Converter,
) (*Result, error) {
	if rebuild {
		return loadForRebuild(ctx, criteria, form, relationships, axioms, converter)
	}
	return loadIncremental(ctx, criteria, form, updateSource, updateDestination, queryConcepts)
}

func loadIncremental(
	ctx context.Context,
	criteria store.BranchCriteria,
	form domain.Form,
	updateSource, updateDestination domain.ConceptSet,
	queryConcepts store.EntityStore[*domain.QueryConcept],
) (*Result, error) {
	seed := updateSource.Union(updateDestination)

	var existingAncestors, existingDescendants domain.ConceptSet
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		existingAncestors, err = collectExistingAncestors(gctx, criteria, queryConcepts, seed)
		return err
	})
	group.Go(func() error {
		var err error
		existingDescendants, err = collectExistingDescendants(gctx, criteria, queryConcepts, updateSource)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	nodesToLoad := seed.Union(existingAncestors).Union(existingDescendants)

	b := graph.NewBuilder()
	alternativeAncestors, err := loadNodes(ctx, criteria, queryConcepts, nodesToLoad, b, nodesToLoad)
	if err != nil {
		return nil, err
	}
	if len(alternativeAncestors) > 0 {
		// Second pass: load alternative ancestors without collecting again,
		// required so multiple-inheritance diamonds that route through a
		// parent outside nodesToLoad still preserve a descendant's
		// alternative ancestry.
		if _, err := loadNodes(ctx, criteria, queryConcepts, alternativeAncestors, b, nil); err != nil {
			return nil, err
		}
	}

	return &Result{Graph: b}, nil
}

// collectExistingAncestors queries projection rows in form whose conceptId
// is in seed, and unions their stored ancestor sets.
func collectExistingAncestors(ctx context.Context, criteria store.BranchCriteria, queryConcepts store.EntityStore[*domain.QueryConcept], seed domain.ConceptSet) (domain.ConceptSet, error) {
	out := domain.ConceptSet{}
	err := queryConcepts.Stream(ctx, criteria, seed, func(qc *domain.QueryConcept) error {
		for id := range qc.Ancestors {
			out.Add(id)
		}
		return nil
	})
	return out, err
}

// collectExistingDescendants queries projection rows in form whose ancestor
// set contains any member of updateSource; their own concept ids form the
// descendant set.
func collectExistingDescendants(ctx context.Context, criteria store.BranchCriteria, queryConcepts store.EntityStore[*domain.QueryConcept], updateSource domain.ConceptSet) (domain.ConceptSet, error) {
	out := domain.ConceptSet{}
	err := queryConcepts.Stream(ctx, criteria, nil, func(qc *domain.QueryConcept) error {
		for id := range updateSource {
			if qc.Ancestors.Has(id) {
				out.Add(qc.ConceptID)
				break
			}
		}
		return nil
	})
	return out, err
}

// loadNodes loads projection rows for ids, adds their stored parent edges to
// b, and — if collectInto is non-nil — returns any stored ancestor not
// already a member of collectInto (the "alternative ancestors" needed for a
// second pass).
func loadNodes(ctx context.Context, criteria store.BranchCriteria, queryConcepts store.EntityStore[*domain.QueryConcept], ids domain.ConceptSet, b *graph.Builder, collectInto domain.ConceptSet) (domain.ConceptSet, error) {
	var alternativeAncestors domain.ConceptSet
	if collectInto != nil {
		alternativeAncestors = domain.ConceptSet{}
	}
	err := queryConcepts.Stream(ctx, criteria, ids, func(qc *domain.QueryConcept) error {
		for parent := range qc.Parents {
			b.AddParent(qc.ConceptID, parent)
		}
		if alternativeAncestors != nil {
			for id := range qc.Ancestors {
				if !collectInto.Has(id) {
					alternativeAncestors.Add(id)
				}
			}
		}
		return nil
	})
	return alternativeAncestors, err
}

func loadForRebuild(
	ctx context.Context,
	criteria store.BranchCriteria,
	form domain.Form,
	relationships store.EntityStore[domain.Relationship],
	axioms store.EntityStore[domain.AxiomMember],
	converter axiom.Converter,
) (*Result, error) {
	b := graph.NewBuilder()
	updatedConcepts := domain.ConceptSet{}
	characteristicTypes := characteristicSet(form)

	err := relationships.Stream(ctx, criteria, nil, func(r domain.Relationship) error {
		if !r.Active || !r.IsISA() || !characteristicTypes[r.CharacteristicType] {
			return nil
		}
		node := b.AddParent(r.SourceID, r.DestinationID)
		b.MarkUpdated(node, criteria.Branch.Path)
		updatedConcepts.Add(r.SourceID)
		if r.DestinationID == domain.ConceptModelObjectAttribute {
			synthetic := b.AddParent(domain.ConceptModelObjectAttribute, domain.ConceptModelAttribute)
			b.MarkUpdated(synthetic, criteria.Branch.Path)
			updatedConcepts.Add(domain.ConceptModelObjectAttribute)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if form == domain.Stated && axioms != nil && converter != nil {
		var members []domain.AxiomMember
		if err := axioms.Stream(ctx, criteria, nil, func(a domain.AxiomMember) error {
			if a.Active {
				members = append(members, a)
			}
			return nil
		}); err != nil {
			return nil, err
		}
		if err := axiom.Stream(members, converter, axiom.IsISA, func(_ domain.AxiomMember, r domain.Relationship) {
			node := b.AddParent(r.SourceID, r.DestinationID)
			b.MarkUpdated(node, criteria.Branch.Path)
			updatedConcepts.Add(r.SourceID)
		}); err != nil {
			return nil, err
		}
	}

	return &Result{Graph: b, UpdatedConcepts: updatedConcepts}, nil
}

func characteristicSet(form domain.Form) map[domain.CharacteristicType]bool {
	set := map[domain.CharacteristicType]bool{}
	for _, ct := range domain.CharacteristicTypesFor(form) {
		set[ct] = true
	}
	return set
}
