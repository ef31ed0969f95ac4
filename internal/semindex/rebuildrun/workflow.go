package rebuildrun

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs the rebuild activity once with Temporal-managed retries; a
// rebuild is idempotent (it always rebuilds the full branch from scratch),
// so retrying a failed attempt is safe.
func Workflow(ctx workflow.Context, req Request) (Result, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 6 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	var result Result
	err := workflow.ExecuteActivity(ctx, ActivityName, req).Get(ctx, &result)
	if err != nil {
		return Result{BranchPath: req.BranchPath, Succeeded: false, Error: err.Error()}, err
	}
	return result, nil
}
