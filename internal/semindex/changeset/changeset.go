// Package changeset implements change-set discovery (C4): given a scope of
// relationship/axiom deltas, it identifies the minimal set of concept ids
// whose projections must be recomputed.
package changeset

import (
	"context"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/semindex/axiom"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// Result is the output of Discover: the concept ids seen as IS_A sources and
// destinations, and the full set of concepts whose projection needs a
// rewrite (updateSource plus attribute-only sources).
type Result struct {
	UpdateSource      domain.ConceptSet
	UpdateDestination domain.ConceptSet
	UpdatedConcepts   domain.ConceptSet
	Empty             bool
}

// Discover implements §4.4. relationships and axioms are scoped to the same
// BranchCriteria (commit-scope, rebase-scope, or "all content" for rebuild);
// converter is only consulted when form == Stated.
func Discover(
	ctx context.Context,
	criteria store.BranchCriteria,
	form domain.Form,
	relationships store.EntityStore[domain.Relationship],
	axioms store.EntityStore[domain.AxiomMember],
	converter axiom.Converter,
) (*Result, error) {
	characteristicTypes := characteristicSet(form)

	updateSource := domain.ConceptSet{}
	updateDestination := domain.ConceptSet{}

	// Step 1: IS_A relationship versions of this form.
	err := relationships.Stream(ctx, criteria, nil, func(r domain.Relationship) error {
		if !r.IsISA() || !characteristicTypes[r.CharacteristicType] {
			return nil
		}
		updateSource.Add(r.SourceID)
		updateDestination.Add(r.DestinationID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 2: STATED also folds in axiom IS_A fragments.
	if form == domain.Stated && axioms != nil && converter != nil {
		var members []domain.AxiomMember
		if err := axioms.Stream(ctx, criteria, nil, func(a domain.AxiomMember) error {
			members = append(members, a)
			return nil
		}); err != nil {
			return nil, err
		}
		if err := axiom.Stream(members, converter, axiom.IsISA, func(_ domain.AxiomMember, r domain.Relationship) {
			updateSource.Add(r.SourceID)
			updateDestination.Add(r.DestinationID)
		}); err != nil {
			return nil, err
		}
	}

	// Step 3: seed updatedConcepts from updateSource.
	updatedConcepts := domain.ConceptSet{}
	for id := range updateSource {
		updatedConcepts.Add(id)
	}

	// Step 4: attribute-only sources still require projection rewrite.
	err = relationships.Stream(ctx, criteria, nil, func(r domain.Relationship) error {
		if r.IsISA() || !characteristicTypes[r.CharacteristicType] {
			return nil
		}
		if !updatedConcepts.Has(r.SourceID) {
			updatedConcepts.Add(r.SourceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 5: CONCEPT_MODEL_OBJECT_ATTRIBUTE's synthetic parent (invariant 4).
	// Only feeds nodesToLoad (updateDestination); CONCEPT_MODEL_ATTRIBUTE's
	// own projection is not forced to rewrite unless something about its own
	// parents/ancestors changed.
	if updateDestination.Has(domain.ConceptModelObjectAttribute) {
		updateDestination.Add(domain.ConceptModelAttribute)
	}

	// Step 6: no-op commit for this form.
	if len(updatedConcepts) == 0 {
		return &Result{Empty: true, UpdateSource: updateSource, UpdateDestination: updateDestination, UpdatedConcepts: updatedConcepts}, nil
	}

	return &Result{
		UpdateSource:      updateSource,
		UpdateDestination: updateDestination,
		UpdatedConcepts:   updatedConcepts,
	}, nil
}

func characteristicSet(form domain.Form) map[domain.CharacteristicType]bool {
	set := map[domain.CharacteristicType]bool{}
	for _, ct := range domain.CharacteristicTypesFor(form) {
		set[ct] = true
	}
	return set
}
