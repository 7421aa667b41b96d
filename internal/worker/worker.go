package worker

import (
	"context"

	"github.com/slocombe/foreman/internal/graph"
)

// Result is a worker's terminal outcome for one proposal.
type Result struct {
	// Success reports whether the worker believes the work is done.
	Success bool

	// Output is the worker's captured output, bounded by the caller.
	Output string
}

// Runtime is one worker instance. Instances are single-use: the iteration
// loop discards the runtime after each attempt and obtains a fresh one, so
// no conversational state accumulates across iterations.
type Runtime interface {
	// Initialize prepares the worker for a task inside a working directory.
	Initialize(ctx context.Context, task *graph.Task, workDir string) error

	// Propose runs the worker against a prompt until it settles. The
	// returned error reports worker execution failure, distinct from the
	// worker completing with Success=false.
	Propose(ctx context.Context, prompt string) (Result, error)
}

// Factory mints a fresh Runtime per iteration.
type Factory func() Runtime

// CheckResult is one verification check's outcome.
type CheckResult struct {
	CheckID string
	Passed  bool
	Output  string

	// Err is set when the check could not be run at all, as opposed to
	// running and failing.
	Err error
}

// CheckConfig selects which check categories a verification pass runs and
// the commands backing them.
type CheckConfig struct {
	Build bool
	Lint  bool
	Test  bool

	BuildCommand []string
	LintCommand  []string
	TestCommand  []string

	// WorkDir is the directory checks run in.
	WorkDir string
}

// Verifier runs the configured checks and reports per-check outcomes.
// Disabled categories are omitted from the result list.
type Verifier interface {
	RunChecks(ctx context.Context, cfg CheckConfig) ([]CheckResult, error)
}
