// Package domain holds the wire-level terminology types shared by every
// semindex component: concepts, relationships, axiom members, the stated/
// inferred form tag, and the persisted QueryConcept projection row.
package domain

import "fmt"

// ConceptID is a stable 64-bit identifier from the terminology's own
// namespace. Concept ids are never generated by this module.
type ConceptID int64

// Well-known concept ids referenced directly by the pipeline.
const (
	ISA                         ConceptID = 116680003
	ConceptModelAttribute       ConceptID = 410662002
	ConceptModelObjectAttribute ConceptID = 762705008
	OWLAxiomReferenceSet        ConceptID = 733073007
	SnomedCTRoot                ConceptID = 138875005
)

// Form selects which projection variant a component operates on. STATED is
// derived from author-supplied axioms plus stated-hierarchy relationships;
// INFERRED is derived from classifier-produced relationships only.
type Form int

const (
	Stated Form = iota
	Inferred
)

func (f Form) String() string {
	switch f {
	case Stated:
		return "stated"
	case Inferred:
		return "inferred"
	default:
		return fmt.Sprintf("Form(%d)", int(f))
	}
}

// Suffix is the conceptIdForm suffix used to key a QueryConcept's primary
// key within a branch version ("{conceptId}_s" or "{conceptId}_i").
func (f Form) Suffix() string {
	switch f {
	case Stated:
		return "s"
	case Inferred:
		return "i"
	default:
		return "?"
	}
}

// Relationship is an input assertion: sourceId has typeId=destinationId in
// the given group. typeId == ISA denotes a parent edge; any other type is a
// grouped, non-hierarchical attribute.
type Relationship struct {
	SourceID           ConceptID
	DestinationID      ConceptID
	TypeID             ConceptID
	Group              uint8
	Active             bool
	CharacteristicType CharacteristicType
	EffectiveTime      *int32 // YYYYMMDD-style effective-time int; nil if unset
	Start              int64 // commit timepoint this version became visible
	End                *int64 // commit timepoint this version was superseded, nil if current
}

// IsISA reports whether this relationship asserts a parent edge.
func (r Relationship) IsISA() bool { return r.TypeID == ISA }

// Ended reports whether this relationship version has been superseded.
func (r Relationship) Ended() bool { return r.End != nil }

// CharacteristicType marks a relationship as stated, inferred, or an
// additional (non-defining) relationship flavor. Each Form consumes a
// disjoint subset of characteristic types.
type CharacteristicType int

const (
	CharacteristicStated CharacteristicType = iota
	CharacteristicInferred
	CharacteristicAdditional
)

// CharacteristicTypesFor returns the characteristic-type set a given form
// draws relationships from.
func CharacteristicTypesFor(form Form) []CharacteristicType {
	switch form {
	case Stated:
		return []CharacteristicType{CharacteristicStated, CharacteristicAdditional}
	case Inferred:
		return []CharacteristicType{CharacteristicInferred, CharacteristicAdditional}
	default:
		return nil
	}
}

// AxiomMember is an opaque logical-axiom record referenced by a single
// concept. The external conversion service (out of scope) decomposes it
// into zero or more synthetic Relationships.
type AxiomMember struct {
	ID            string
	ReferencedConceptID ConceptID
	Active        bool
	EffectiveTime *int32
	Start         int64
	End           *int64
}

// Ended reports whether this axiom member version has been superseded.
func (a AxiomMember) Ended() bool { return a.End != nil }

// AttributeChange is a single non-ISA attribute add/remove event attached to
// a concept. Ordering: by EffectiveTime ascending (nil sorts as the sentinel
// 90_000_000), then Add before Remove for equal effective time.
type AttributeChange struct {
	EffectiveTime *int32
	Group         uint8
	Type          ConceptID
	Value         ConceptID
	Add           bool
}

// EffectiveTimeSentinel is the value a nil EffectiveTime sorts as, matching
// the source algorithm's "changes with no effective time sort last" rule.
const EffectiveTimeSentinel int32 = 90_000_000

// EffectiveTimeOrKey returns EffectiveTime dereferenced, or the sentinel if nil.
func (c AttributeChange) EffectiveTimeOrKey() int32 {
	return EffectiveTimeOrSentinel(c.EffectiveTime)
}

// EffectiveTimeOrSentinel returns t dereferenced, or EffectiveTimeSentinel if
// nil; shared by the relationship/axiom stream orderings and AttributeChange.
func EffectiveTimeOrSentinel(t *int32) int32 {
	if t == nil {
		return EffectiveTimeSentinel
	}
	return *t
}

// AttributeGroups is the persisted grouped-attribute shape: group -> typeId
// -> set of valueIds asserted in that group.
type AttributeGroups map[uint8]map[ConceptID]map[ConceptID]struct{}

// Clone returns a deep copy so callers can mutate the result without
// aliasing a stored projection row.
func (g AttributeGroups) Clone() AttributeGroups {
	if g == nil {
		return AttributeGroups{}
	}
	out := make(AttributeGroups, len(g))
	for group, byType := range g {
		outByType := make(map[ConceptID]map[ConceptID]struct{}, len(byType))
		for typeID, values := range byType {
			outValues := make(map[ConceptID]struct{}, len(values))
			for v := range values {
				outValues[v] = struct{}{}
			}
			outByType[typeID] = outValues
		}
		out[group] = outByType
	}
	return out
}

// Add inserts a (type, value) binding into the given group.
func (g AttributeGroups) Add(group uint8, typeID, value ConceptID) {
	byType, ok := g[group]
	if !ok {
		byType = make(map[ConceptID]map[ConceptID]struct{})
		g[group] = byType
	}
	values, ok := byType[typeID]
	if !ok {
		values = make(map[ConceptID]struct{})
		byType[typeID] = values
	}
	values[value] = struct{}{}
}

// Remove deletes a (type, value) binding from the given group, idempotently.
func (g AttributeGroups) Remove(group uint8, typeID, value ConceptID) {
	byType, ok := g[group]
	if !ok {
		return
	}
	values, ok := byType[typeID]
	if !ok {
		return
	}
	delete(values, value)
	if len(values) == 0 {
		delete(byType, typeID)
	}
	if len(byType) == 0 {
		delete(g, group)
	}
}

// ConceptSet is the common set-of-ids shape used for parents, ancestors and
// scratch collections throughout the pipeline.
type ConceptSet map[ConceptID]struct{}

// NewConceptSet builds a ConceptSet from the given ids.
func NewConceptSet(ids ...ConceptID) ConceptSet {
	s := make(ConceptSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s ConceptSet) Add(id ConceptID) { s[id] = struct{}{} }

// Has reports whether id is a member.
func (s ConceptSet) Has(id ConceptID) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set containing every member of s and other.
func (s ConceptSet) Union(other ConceptSet) ConceptSet {
	out := make(ConceptSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Slice returns the set's members as a slice, in no particular order.
func (s ConceptSet) Slice() []ConceptID {
	out := make([]ConceptID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// QueryConcept is the persisted projection row: the precomputed parents,
// transitive ancestor closure, and grouped attributes for one concept in one
// form, as of one branch version.
type QueryConcept struct {
	ConceptIDForm   string // "{conceptId}_s" or "{conceptId}_i"
	ConceptID       ConceptID
	Form            Form
	Parents         ConceptSet
	Ancestors       ConceptSet
	AttributeGroups AttributeGroups
}

// ConceptIDFormOf builds the conceptIdForm primary key for (id, form).
func ConceptIDFormOf(id ConceptID, form Form) string {
	return fmt.Sprintf("%d_%s", int64(id), form.Suffix())
}

// NewQueryConcept builds an empty projection row for (id, form).
func NewQueryConcept(id ConceptID, form Form) *QueryConcept {
	return &QueryConcept{
		ConceptIDForm:   ConceptIDFormOf(id, form),
		ConceptID:       id,
		Form:            form,
		Parents:         ConceptSet{},
		Ancestors:       ConceptSet{},
		AttributeGroups: AttributeGroups{},
	}
}

// IsRoot reports whether id is the terminology root, the one concept allowed
// to persist with an empty parent set (invariant 3 in the data model).
func IsRoot(id ConceptID) bool { return id == SnomedCTRoot }
