package rebuildrun

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/semindex/orchestrator"
	"github.com/terminology-platform/semindex/internal/temporalx"
)

// Runner hosts the rebuild workflow and activity on a Temporal task queue.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	orch *orchestrator.Orchestrator
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, orch *orchestrator.Orchestrator) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("rebuildrun: temporal client is not configured")
	}
	if orch == nil {
		return nil, fmt.Errorf("rebuildrun: orchestrator is not configured")
	}
	return &Runner{log: log, tc: tc, orch: orch}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	cfg := temporalx.LoadConfig()
	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{})

	acts := &Activities{Log: r.log, Orchestrator: r.orch}
	w.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(acts.Run, activity.RegisterOptions{Name: ActivityName})

	if err := w.Start(); err != nil {
		return fmt.Errorf("rebuildrun: start worker: %w", err)
	}
	if r.log != nil {
		r.log.Info("semantic index rebuild worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// TriggerRebuild starts a rebuild workflow execution for the given branch,
// keyed so a duplicate trigger for a branch already rebuilding is rejected
// by Temporal rather than starting a second concurrent rebuild.
func TriggerRebuild(ctx context.Context, tc temporalsdkclient.Client, req Request) (temporalsdkclient.WorkflowRun, error) {
	cfg := temporalx.LoadConfig()
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    fmt.Sprintf("semindex-rebuild-%s", req.BranchPath),
		TaskQueue:             cfg.TaskQueue,
		WorkflowIDReusePolicy: 0,
	}
	return tc.ExecuteWorkflow(ctx, opts, Workflow, req)
}
