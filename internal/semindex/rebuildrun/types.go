// Package rebuildrun wraps the orchestrator's admin Rebuild entry point in a
// durable Temporal workflow so an operator-triggered full rebuild survives a
// worker restart instead of needing to run start-to-finish inside a single
// HTTP request.
package rebuildrun

const (
	WorkflowName = "semindex_rebuild"
	ActivityName = "semindex_rebuild_run"
)

// Request names the branch and commit the rebuild admin operation opened.
type Request struct {
	BranchPath   string `json:"branch_path"`
	BranchParent string `json:"branch_parent"`
	Timepoint    int64  `json:"timepoint"`
}

// Result reports completion; the orchestrator itself has no partial-progress
// concept to surface mid-rebuild, so this is a terminal status only.
type Result struct {
	BranchPath string `json:"branch_path"`
	Succeeded  bool   `json:"succeeded"`
	Error      string `json:"error,omitempty"`
}
