// Package attrchange implements the per-concept attribute-change
// accumulator (C2): an append-only log of non-ISA attribute add/remove
// events, replayed deterministically against a starting attribute-group map.
package attrchange

import (
	"sort"

	"github.com/terminology-platform/semindex/internal/domain"
)

// Accumulator collects AttributeChange events per concept across a single
// pipeline run and replays them in order on demand.
type Accumulator struct {
	byConcept map[domain.ConceptID][]domain.AttributeChange
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{byConcept: make(map[domain.ConceptID][]domain.AttributeChange)}
}

// Add appends a change for concept id.
func (a *Accumulator) Add(id domain.ConceptID, change domain.AttributeChange) {
	a.byConcept[id] = append(a.byConcept[id], change)
}

// ConceptIDs returns every concept id that has at least one recorded change.
func (a *Accumulator) ConceptIDs() []domain.ConceptID {
	out := make([]domain.ConceptID, 0, len(a.byConcept))
	for id := range a.byConcept {
		out = append(out, id)
	}
	return out
}

// Has reports whether id has any recorded attribute changes.
func (a *Accumulator) Has(id domain.ConceptID) bool {
	_, ok := a.byConcept[id]
	return ok
}

// EffectiveSortedChanges returns a stable sort of id's changes by
// (effectiveTime ascending, add before remove for equal effective time).
func (a *Accumulator) EffectiveSortedChanges(id domain.ConceptID) []domain.AttributeChange {
	changes := append([]domain.AttributeChange(nil), a.byConcept[id]...)
	sort.SliceStable(changes, func(i, j int) bool {
		ei, ej := changes[i].EffectiveTimeOrKey(), changes[j].EffectiveTimeOrKey()
		if ei != ej {
			return ei < ej
		}
		// add before remove for equal effective time.
		return changes[i].Add && !changes[j].Add
	})
	return changes
}

// Replay applies id's sorted changes onto starting (a clone of the existing
// projection row's attribute groups, or an empty map) and returns the
// resulting map. add inserts the (type, value) binding; remove deletes it
// idempotently.
func (a *Accumulator) Replay(id domain.ConceptID, starting domain.AttributeGroups) domain.AttributeGroups {
	groups := starting.Clone()
	for _, change := range a.EffectiveSortedChanges(id) {
		if change.Add {
			groups.Add(change.Group, change.Type, change.Value)
		} else {
			groups.Remove(change.Group, change.Type, change.Value)
		}
	}
	return groups
}
