// Package axiom implements the axiom-to-relationship adapter (C3): it
// streams axiom members through an external conversion service and yields
// synthetic relationships with the source axiom's concept stamped onto
// their sourceId. The conversion service itself is an out-of-scope external
// collaborator; only the streaming/filtering boundary lives here.
package axiom

import (
	"errors"
	"fmt"

	"github.com/terminology-platform/semindex/internal/domain"
)

// Representation is the decomposition of one axiom member: the named
// concept on its left-hand side, and the relationships its right-hand side
// expands to. Either half may be absent, meaning "not a regular axiom."
type Representation struct {
	LeftHandSideNamedConcept *domain.ConceptID
	RightHandSideRelationships []domain.Relationship
}

// Converter is the external axiom-to-relationship conversion service
// contract (out of scope: its implementation lives outside this module).
type Converter interface {
	Convert(member domain.AxiomMember) (*Representation, error)
}

// ConversionError wraps a failure from the converter. It is fatal: per the
// error-handling design, it must abort the commit.
type ConversionError struct {
	AxiomID string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("axiom conversion failed for %s: %v", e.AxiomID, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Predicate filters which relationships a Stream call yields, e.g.
// restricting to IS_A fragments for change-set discovery.
type Predicate func(domain.Relationship) bool

// IsISA is a Predicate matching only IS_A relationships.
func IsISA(r domain.Relationship) bool { return r.IsISA() }

// Any is a Predicate matching every relationship.
func Any(domain.Relationship) bool { return true }

// Stream drains members through converter, filters the resulting
// relationships by predicate, stamps the axiom's referenced concept id onto
// each relationship's SourceID, and invokes consumer for each
// (member, relationship) pair. Conversion errors are accumulated and the
// first one is returned once the full stream has been drained, matching the
// "per-stream error carrier" design so a failure aborts at the stream's next
// boundary rather than unwinding through the iterator mid-member.
func Stream(members []domain.AxiomMember, converter Converter, predicate Predicate, consumer func(domain.AxiomMember, domain.Relationship)) error {
	if predicate == nil {
		predicate = Any
	}
	var firstErr error
	for _, member := range members {
		rep, err := converter.Convert(member)
		if err != nil {
			if firstErr == nil {
				firstErr = &ConversionError{AxiomID: member.ID, Err: err}
			}
			continue
		}
		if rep == nil || rep.LeftHandSideNamedConcept == nil || rep.RightHandSideRelationships == nil {
			// Missing named LHS or missing RHS relationships: "not a
			// regular axiom", skip silently.
			continue
		}
		source := *rep.LeftHandSideNamedConcept
		for _, rel := range rep.RightHandSideRelationships {
			if !predicate(rel) {
				continue
			}
			rel.SourceID = source
			consumer(member, rel)
		}
	}
	return firstErr
}

// ErrNotAnAxiom names the "not a regular axiom" case. No Converter in this
// module returns it: Stream recognises that case only by a nil
// Representation or a missing LHS/RHS, and wraps any Converter error, this
// one included, in a ConversionError.
var ErrNotAnAxiom = errors.New("axiom: not a regular axiom (missing LHS or RHS)")
