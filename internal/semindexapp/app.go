// Package semindexapp wires the semantic index worker process together:
// the Postgres store adapter, the optional Neo4j mirror, the update
// orchestrator, and the Temporal worker that hosts its rebuild workflow.
package semindexapp

import (
	"context"
	"fmt"

	"github.com/terminology-platform/semindex/internal/data/db"
	"github.com/terminology-platform/semindex/internal/observability"
	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/platform/neo4jdb"
	"github.com/terminology-platform/semindex/internal/semindex/neo4jmirror"
	"github.com/terminology-platform/semindex/internal/semindex/orchestrator"
	"github.com/terminology-platform/semindex/internal/semindex/rebuildrun"
	"github.com/terminology-platform/semindex/internal/semindex/store/pg"
	"github.com/terminology-platform/semindex/internal/temporalx"
	"github.com/terminology-platform/semindex/internal/utils"

	temporalsdkclient "go.temporal.io/sdk/client"
)

type App struct {
	Log          *logger.Logger
	Orchestrator *orchestrator.Orchestrator
	Temporal     temporalsdkclient.Client

	runner       *rebuildrun.Runner
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	env := utils.GetEnv("APP_ENV", "development", nil)
	log, err := logger.New(env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "semindex-worker",
		Environment: env,
	})

	pgService, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pgService.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	gdb := pgService.DB()

	relationships := pg.NewRelationshipStore(gdb)
	axioms := pg.NewAxiomMemberStore(gdb)
	queryConcepts := pg.NewQueryConceptStore(gdb)
	existence := pg.NewExistenceChecker(gdb)

	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("neo4j mirror disabled: init failed", "error", err)
	}
	mirror := neo4jmirror.New(neoClient, log)

	deps := orchestrator.Dependencies{
		Relationships: relationships,
		Axioms:        axioms,
		QueryConcepts: queryConcepts,
		// Converter is the external axiom-to-relationship conversion
		// service; it has no in-module implementation and is left for a
		// host deployment to inject.
		Converter: nil,
		Existence: existence,
		Mirror:    mirror,
	}
	cfg := orchestrator.LoadConfig(log)
	orch := orchestrator.New(deps, cfg, log)

	tc, err := temporalx.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("connect temporal: %w", err)
	}

	app := &App{
		Log:          log,
		Orchestrator: orch,
		Temporal:     tc,
		otelShutdown: otelShutdown,
	}

	if tc != nil {
		runner, err := rebuildrun.NewRunner(log, tc, orch)
		if err != nil {
			return nil, fmt.Errorf("init rebuild runner: %w", err)
		}
		app.runner = runner
	} else {
		log.Warn("temporal client unavailable; rebuild workflow worker disabled")
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.runner == nil {
		log := a.Log
		if log != nil {
			log.Info("semindex worker idle: no Temporal worker registered")
		}
		<-ctx.Done()
		return nil
	}
	if err := a.runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (a *App) Close() {
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
}
