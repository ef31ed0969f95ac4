package neo4jmirror

import (
	"context"
	"os"
	"testing"

	"github.com/terminology-platform/semindex/internal/domain"
	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/platform/neo4jdb"
)

func neo4jIntegrationEnabled() bool { return os.Getenv("NEO4J_INTEGRATION") == "1" }

func TestMirrorBatch_UpsertsNodesAndEdges(t *testing.T) {
	if !neo4jIntegrationEnabled() {
		t.Skip("set NEO4J_INTEGRATION=1 to run the neo4jmirror integration test")
	}

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	client, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		t.Fatalf("connect to neo4j: %v", err)
	}
	defer client.Close(context.Background())

	m := New(client, log)
	row := domain.NewQueryConcept(1, domain.Inferred)
	row.Parents.Add(2)

	if err := m.MirrorBatch(context.Background(), domain.Inferred, "MAIN", []*domain.QueryConcept{row}, nil); err != nil {
		t.Fatalf("mirror batch: %v", err)
	}
}

func TestMirrorBatch_NilDriverIsNoop(t *testing.T) {
	m := New(&neo4jdb.Client{}, nil)
	row := domain.NewQueryConcept(1, domain.Inferred)
	if err := m.MirrorBatch(context.Background(), domain.Inferred, "MAIN", []*domain.QueryConcept{row}, nil); err != nil {
		t.Fatalf("expected nil-driver mirror to no-op, got %v", err)
	}
}
