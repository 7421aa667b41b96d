package worker

import (
	"context"
	"os/exec"

	"github.com/slocombe/foreman/internal/logging"
)

// Check category identifiers shared with the iteration loop's checklist.
const (
	CheckImplement = "implement"
	CheckBuild     = "build"
	CheckLint      = "lint"
	CheckTest      = "test"
)

// CommandVerifier runs each enabled check category as a shell command and
// reports pass/fail from the exit status, with combined output captured.
type CommandVerifier struct {
	logger *logging.Logger
}

// NewCommandVerifier creates a verifier. logger may be nil.
func NewCommandVerifier(logger *logging.Logger) *CommandVerifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CommandVerifier{logger: logger}
}

// RunChecks executes the enabled categories in build, lint, test order.
// A command that exits non-zero is a failed check, not an error; Err is
// reserved for checks that could not run at all (missing binary, bad
// configuration).
func (v *CommandVerifier) RunChecks(ctx context.Context, cfg CheckConfig) ([]CheckResult, error) {
	type job struct {
		id      string
		enabled bool
		argv    []string
	}
	jobs := []job{
		{CheckBuild, cfg.Build, cfg.BuildCommand},
		{CheckLint, cfg.Lint, cfg.LintCommand},
		{CheckTest, cfg.Test, cfg.TestCommand},
	}

	var results []CheckResult
	for _, j := range jobs {
		if !j.enabled {
			continue
		}
		results = append(results, v.runOne(ctx, j.id, j.argv, cfg.WorkDir))
	}
	return results, nil
}

func (v *CommandVerifier) runOne(ctx context.Context, checkID string, argv []string, workDir string) CheckResult {
	if len(argv) == 0 {
		return CheckResult{
			CheckID: checkID,
			Err:     &exec.Error{Name: checkID, Err: exec.ErrNotFound},
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	result := CheckResult{CheckID: checkID, Output: string(out)}

	switch err.(type) {
	case nil:
		result.Passed = true
	case *exec.ExitError:
		// Ran and failed: a check failure, not an execution error.
	default:
		result.Err = err
	}

	v.logger.Debug("check finished", "check", checkID, "passed", result.Passed)
	return result
}
