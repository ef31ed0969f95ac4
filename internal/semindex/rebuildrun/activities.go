package rebuildrun

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/semindex/orchestrator"
	"github.com/terminology-platform/semindex/internal/semindex/store"
)

// Activities bundles the orchestrator a rebuild activity drives.
type Activities struct {
	Log          *logger.Logger
	Orchestrator *orchestrator.Orchestrator
}

// Run executes one full rebuild and reports its outcome. Request.Timepoint
// must be a commit the caller has already opened and will mark successful
// once this activity returns without error.
func (a *Activities) Run(ctx context.Context, req Request) (Result, error) {
	if a == nil || a.Orchestrator == nil {
		return Result{}, fmt.Errorf("rebuildrun: activity not configured")
	}

	stopHB := a.startHeartbeat(ctx)
	defer stopHB()

	commit := store.Commit{
		Branch:    store.Branch{Path: req.BranchPath, Parent: req.BranchParent},
		Timepoint: req.Timepoint,
	}
	if err := a.Orchestrator.Rebuild(ctx, commit); err != nil {
		if a.Log != nil {
			a.Log.Error("semantic index rebuild failed", "branch", req.BranchPath, "error", err)
		}
		return Result{BranchPath: req.BranchPath, Succeeded: false, Error: err.Error()}, err
	}

	return Result{BranchPath: req.BranchPath, Succeeded: true}, nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
