// Package pg is the gorm/Postgres-backed store.EntityStore[T] adapter: the
// concrete row types and query/persistence logic behind the generic port
// every pipeline component (C4-C8) is written against.
package pg

import (
	"time"

	"gorm.io/datatypes"

	"github.com/terminology-platform/semindex/internal/domain"
)

// ConceptRow is the minimal concept-catalogue mirror this module owns: just
// enough to back a local ConceptExistenceChecker (§7 IntegrityWarning) when
// a host application has not wired in its own catalogue. It is not
// authoritative; the versioned content store's own concept table is.
type ConceptRow struct {
	ID            int64  `gorm:"primaryKey"`
	Active        bool   `gorm:"not null"`
	EffectiveTime *int32
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (ConceptRow) TableName() string { return "concept_row" }

// RelationshipRow is the persisted form of domain.Relationship, versioned by
// branch_path/start_commit/end_commit the way every entity kind in this
// store is.
type RelationshipRow struct {
	ID                 int64 `gorm:"primaryKey;autoIncrement"`
	BranchPath         string `gorm:"not null;index:idx_relationship_branch_source,priority:1"`
	SourceID           int64  `gorm:"not null;index:idx_relationship_branch_source,priority:2"`
	DestinationID      int64  `gorm:"not null"`
	TypeID             int64  `gorm:"not null"`
	RelGroup           uint8  `gorm:"column:rel_group;not null"`
	Active             bool   `gorm:"not null"`
	CharacteristicType int16  `gorm:"not null"`
	EffectiveTime      *int32
	StartCommit        int64  `gorm:"not null"`
	EndCommit          *int64
}

func (RelationshipRow) TableName() string { return "relationship_row" }

func (r RelationshipRow) toDomain() domain.Relationship {
	var end *int64
	if r.EndCommit != nil {
		v := *r.EndCommit
		end = &v
	}
	return domain.Relationship{
		SourceID:           domain.ConceptID(r.SourceID),
		DestinationID:      domain.ConceptID(r.DestinationID),
		TypeID:             domain.ConceptID(r.TypeID),
		Group:              r.RelGroup,
		Active:             r.Active,
		CharacteristicType: domain.CharacteristicType(r.CharacteristicType),
		EffectiveTime:      r.EffectiveTime,
		Start:              r.StartCommit,
		End:                end,
	}
}

func relationshipRowFrom(branchPath string, start int64, r domain.Relationship) RelationshipRow {
	var end *int64
	if r.End != nil {
		v := *r.End
		end = &v
	}
	return RelationshipRow{
		BranchPath:         branchPath,
		SourceID:           int64(r.SourceID),
		DestinationID:      int64(r.DestinationID),
		TypeID:             int64(r.TypeID),
		RelGroup:           r.Group,
		Active:             r.Active,
		CharacteristicType: int16(r.CharacteristicType),
		EffectiveTime:      r.EffectiveTime,
		StartCommit:        start,
		EndCommit:          end,
	}
}

// AxiomMemberRow is the persisted form of domain.AxiomMember.
type AxiomMemberRow struct {
	AxiomID             string `gorm:"primaryKey;column:axiom_id"`
	BranchPath          string `gorm:"not null;index:idx_axiom_branch_concept,priority:1"`
	StartCommit         int64  `gorm:"not null"`
	ReferencedConceptID int64  `gorm:"not null;index:idx_axiom_branch_concept,priority:2"`
	Active              bool   `gorm:"not null"`
	EffectiveTime       *int32
	EndCommit           *int64
}

func (AxiomMemberRow) TableName() string { return "axiom_member_row" }

func (a AxiomMemberRow) toDomain() domain.AxiomMember {
	var end *int64
	if a.EndCommit != nil {
		v := *a.EndCommit
		end = &v
	}
	return domain.AxiomMember{
		ID:                  a.AxiomID,
		ReferencedConceptID: domain.ConceptID(a.ReferencedConceptID),
		Active:              a.Active,
		EffectiveTime:       a.EffectiveTime,
		Start:               a.StartCommit,
		End:                 end,
	}
}

func axiomMemberRowFrom(branchPath string, start int64, a domain.AxiomMember) AxiomMemberRow {
	var end *int64
	if a.End != nil {
		v := *a.End
		end = &v
	}
	return AxiomMemberRow{
		AxiomID:             a.ID,
		BranchPath:          branchPath,
		StartCommit:         start,
		ReferencedConceptID: int64(a.ReferencedConceptID),
		Active:              a.Active,
		EffectiveTime:       a.EffectiveTime,
		EndCommit:           end,
	}
}

// QueryConceptRow is the persisted projection row: parents/ancestors/
// attribute groups are stored as JSON columns via gorm.io/datatypes, matching
// the teacher's MisconceptionSupport encode/decode pattern.
type QueryConceptRow struct {
	ConceptIDForm   string `gorm:"primaryKey;column:concept_id_form"`
	BranchPath      string `gorm:"not null;index:idx_query_concept_branch_form,priority:1"`
	ConceptID       int64  `gorm:"not null"`
	Form            int16  `gorm:"not null;index:idx_query_concept_branch_form,priority:2"`
	Parents         datatypes.JSON
	Ancestors       datatypes.JSON
	AttributeGroups datatypes.JSON
	StartCommit     int64 `gorm:"not null"`
	EndCommit       *int64
}

func (QueryConceptRow) TableName() string { return "query_concept_row" }

func (q QueryConceptRow) toDomain() *domain.QueryConcept {
	return &domain.QueryConcept{
		ConceptIDForm:   q.ConceptIDForm,
		ConceptID:       domain.ConceptID(q.ConceptID),
		Form:            domain.Form(q.Form),
		Parents:         decodeConceptSet(q.Parents),
		Ancestors:       decodeConceptSet(q.Ancestors),
		AttributeGroups: decodeAttributeGroups(q.AttributeGroups),
	}
}

func queryConceptRowFrom(branchPath string, start int64, qc *domain.QueryConcept) QueryConceptRow {
	return QueryConceptRow{
		ConceptIDForm:   qc.ConceptIDForm,
		BranchPath:      branchPath,
		ConceptID:       int64(qc.ConceptID),
		Form:            int16(qc.Form),
		Parents:         encodeConceptSet(qc.Parents),
		Ancestors:       encodeConceptSet(qc.Ancestors),
		AttributeGroups: encodeAttributeGroups(qc.AttributeGroups),
		StartCommit:     start,
	}
}
