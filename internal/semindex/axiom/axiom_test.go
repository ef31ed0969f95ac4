package axiom

import (
	"errors"
	"testing"

	"github.com/terminology-platform/semindex/internal/domain"
)

type stubConverter struct {
	reps map[string]*Representation
	errs map[string]error
}

func (s stubConverter) Convert(member domain.AxiomMember) (*Representation, error) {
	if err, ok := s.errs[member.ID]; ok {
		return nil, err
	}
	return s.reps[member.ID], nil
}

func concept(id domain.ConceptID) *domain.ConceptID { return &id }

func TestStream_SkipsNotARegularAxiom(t *testing.T) {
	converter := stubConverter{reps: map[string]*Representation{
		"ax1": nil,
		"ax2": {LeftHandSideNamedConcept: nil, RightHandSideRelationships: []domain.Relationship{{}}},
	}}
	members := []domain.AxiomMember{{ID: "ax1"}, {ID: "ax2"}}

	var got []domain.Relationship
	err := Stream(members, converter, Any, func(_ domain.AxiomMember, r domain.Relationship) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no relationships yielded, got %v", got)
	}
}

func TestStream_StampsSourceAndFilters(t *testing.T) {
	converter := stubConverter{reps: map[string]*Representation{
		"ax1": {
			LeftHandSideNamedConcept: concept(100),
			RightHandSideRelationships: []domain.Relationship{
				{TypeID: domain.ISA, DestinationID: 1},
				{TypeID: 7, DestinationID: 8},
			},
		},
	}}
	members := []domain.AxiomMember{{ID: "ax1"}}

	var got []domain.Relationship
	err := Stream(members, converter, IsISA, func(_ domain.AxiomMember, r domain.Relationship) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].SourceID != 100 || got[0].DestinationID != 1 {
		t.Fatalf("expected single stamped ISA relationship, got %v", got)
	}
}

func TestStream_ConversionErrorAbortsAtEnd(t *testing.T) {
	boom := errors.New("boom")
	converter := stubConverter{
		reps: map[string]*Representation{
			"ax2": {LeftHandSideNamedConcept: concept(1), RightHandSideRelationships: []domain.Relationship{{TypeID: domain.ISA}}},
		},
		errs: map[string]error{"ax1": boom},
	}
	members := []domain.AxiomMember{{ID: "ax1"}, {ID: "ax2"}}

	var got []domain.Relationship
	err := Stream(members, converter, Any, func(_ domain.AxiomMember, r domain.Relationship) {
		got = append(got, r)
	})
	if err == nil {
		t.Fatalf("expected conversion error")
	}
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %T", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected stream to keep draining remaining members before returning the error, got %v", got)
	}
}
