package memstore

import (
	"fmt"

	"github.com/terminology-platform/semindex/internal/domain"
)

// NewRelationshipStore builds a Store[domain.Relationship] keyed by the
// (source, type, destination, group) tuple a relationship version asserts.
func NewRelationshipStore(db *DB) *Store[domain.Relationship] {
	return New(db,
		func(r domain.Relationship) string {
			return fmt.Sprintf("%d-%d-%d-%d", r.SourceID, r.TypeID, r.DestinationID, r.Group)
		},
		func(r domain.Relationship) domain.ConceptID { return r.SourceID },
		func(r domain.Relationship) (*int32, bool) { return r.EffectiveTime, r.Active },
	)
}

// NewAxiomMemberStore builds a Store[domain.AxiomMember] keyed by axiom id.
func NewAxiomMemberStore(db *DB) *Store[domain.AxiomMember] {
	return New(db,
		func(a domain.AxiomMember) string { return a.ID },
		func(a domain.AxiomMember) domain.ConceptID { return a.ReferencedConceptID },
		func(a domain.AxiomMember) (*int32, bool) { return a.EffectiveTime, a.Active },
	)
}

// NewQueryConceptStore builds a Store[*domain.QueryConcept] keyed by the
// projection row's conceptIdForm primary key. Projection rows carry no
// effectiveTime/active ordering signal, so orderFunc is nil.
func NewQueryConceptStore(db *DB) *Store[*domain.QueryConcept] {
	return New(db,
		func(q *domain.QueryConcept) string { return q.ConceptIDForm },
		func(q *domain.QueryConcept) domain.ConceptID { return q.ConceptID },
		nil,
	)
}
