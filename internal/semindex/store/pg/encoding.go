package pg

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/terminology-platform/semindex/internal/domain"
)

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func encodeConceptSet(s domain.ConceptSet) datatypes.JSON {
	ids := make([]domain.ConceptID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return datatypes.JSON(mustJSON(ids))
}

func decodeConceptSet(raw datatypes.JSON) domain.ConceptSet {
	out := domain.ConceptSet{}
	if len(raw) == 0 {
		return out
	}
	var ids []domain.ConceptID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return out
	}
	for _, id := range ids {
		out.Add(id)
	}
	return out
}

// attributeGroupWire is the JSON wire shape for domain.AttributeGroups: the
// nested map keys (group, typeId) don't round-trip through encoding/json's
// native map marshaling since JSON object keys must be strings, so it is
// flattened to a binding list instead.
type attributeGroupWire struct {
	Group uint8            `json:"group"`
	Type  domain.ConceptID `json:"type"`
	Value domain.ConceptID `json:"value"`
}

func encodeAttributeGroups(g domain.AttributeGroups) datatypes.JSON {
	var bindings []attributeGroupWire
	for group, byType := range g {
		for typeID, values := range byType {
			for value := range values {
				bindings = append(bindings, attributeGroupWire{Group: group, Type: typeID, Value: value})
			}
		}
	}
	return datatypes.JSON(mustJSON(bindings))
}

func decodeAttributeGroups(raw datatypes.JSON) domain.AttributeGroups {
	out := domain.AttributeGroups{}
	if len(raw) == 0 {
		return out
	}
	var bindings []attributeGroupWire
	if err := json.Unmarshal(raw, &bindings); err != nil {
		return out
	}
	for _, b := range bindings {
		out.Add(b.Group, b.Type, b.Value)
	}
	return out
}
