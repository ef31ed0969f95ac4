// Package neo4jmirror is the best-effort secondary graph projection (§4.10):
// it mirrors the batches the writer (C6) just persisted into a Neo4j graph
// so downstream tooling (path traversal UIs, ad hoc Cypher exploration) has
// a native graph view of the same hierarchy the relational projection
// encodes as parent/ancestor sets. A mirror failure never aborts a commit;
// the relational projection store stays authoritative.
package neo4jmirror

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/platform/neo4jdb"
)

// Mirror implements orchestrator.Mirror against a Neo4j database.
type Mirror struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func New(client *neo4jdb.Client, log *logger.Logger) *Mirror {
	return &Mirror{client: client, log: log}
}

// MirrorBatch upserts the given rows as (:Concept {concept_id_form}) nodes
// with IS_A edges to their direct parents, tagged with the branch and form,
// and detaches deleted concepts' nodes for this form.
func (m *Mirror) MirrorBatch(ctx context.Context, form domain.Form, branchPath string, rows []*domain.QueryConcept, deleted domain.ConceptSet) error {
	if m == nil || m.client == nil || m.client.Driver == nil {
		return nil
	}

	nodes := make([]map[string]any, 0, len(rows))
	edges := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		nodes = append(nodes, map[string]any{
			"concept_id_form": row.ConceptIDForm,
			"concept_id":      int64(row.ConceptID),
			"form":            form.String(),
			"branch":          branchPath,
		})
		for parent := range row.Parents {
			edges = append(edges, map[string]any{
				"child_form":  row.ConceptIDForm,
				"parent_form": domain.ConceptIDFormOf(parent, form),
				"branch":      branchPath,
			})
		}
	}

	deletedForms := make([]string, 0, len(deleted))
	for id := range deleted {
		deletedForms = append(deletedForms, domain.ConceptIDFormOf(id, form))
	}

	session := m.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: m.client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT concept_form_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.concept_id_form IS UNIQUE`, nil); err != nil {
		if m.log != nil {
			m.log.Warn("neo4j mirror schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {concept_id_form: n.concept_id_form})
SET c.concept_id = n.concept_id, c.form = n.form, c.branch = n.branch
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, fmt.Errorf("mirror nodes: %w", err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(nodes) > 0 {
			// Drop this batch's prior ISA edges before recreating them so a
			// reparented concept doesn't keep a stale edge to its old parent.
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MATCH (child:Concept {concept_id_form: n.concept_id_form})-[r:ISA]->()
DELETE r
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, fmt.Errorf("mirror stale edges: %w", err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $edges AS e
MATCH (child:Concept {concept_id_form: e.child_form})
MERGE (parent:Concept {concept_id_form: e.parent_form})
MERGE (child)-[r:ISA]->(parent)
SET r.branch = e.branch
`, map[string]any{"edges": edges})
			if err != nil {
				return nil, fmt.Errorf("mirror edges: %w", err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(deletedForms) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $forms AS f
MATCH (c:Concept {concept_id_form: f})
DETACH DELETE c
`, map[string]any{"forms": deletedForms})
			if err != nil {
				return nil, fmt.Errorf("mirror deletions: %w", err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	return err
}
