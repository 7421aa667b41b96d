package worker

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/graph"
	"github.com/slocombe/foreman/internal/logging"
)

// CommandRuntime runs an external agent command once per proposal, passing
// the prompt on stdin and reading the outcome from the exit status. It is
// single-use, matching the iteration loop's fresh-instance contract.
type CommandRuntime struct {
	argv    []string
	logger  *logging.Logger
	workDir string
	task    *graph.Task
	used    bool
}

// NewCommandRuntime returns a factory minting runtimes for the given
// command. logger may be nil.
func NewCommandRuntime(argv []string, logger *logging.Logger) Factory {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func() Runtime {
		return &CommandRuntime{argv: argv, logger: logger}
	}
}

// Initialize records the task and working directory for the proposal.
func (r *CommandRuntime) Initialize(ctx context.Context, task *graph.Task, workDir string) error {
	if len(r.argv) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "worker command not configured")
	}
	r.task = task
	r.workDir = workDir
	return nil
}

// Propose runs the command to completion. A non-zero exit is a worker
// reporting failure, not an execution error.
func (r *CommandRuntime) Propose(ctx context.Context, prompt string) (Result, error) {
	if r.used {
		return Result{}, errors.Wrap(errors.ErrInvalidInput, "runtime already used")
	}
	r.used = true

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Dir = r.workDir
	cmd.Stdin = strings.NewReader(prompt)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	result := Result{Output: out.String()}
	switch err.(type) {
	case nil:
		result.Success = true
		return result, nil
	case *exec.ExitError:
		return result, nil
	default:
		return result, errors.Wrap(err, "run worker command")
	}
}
