package ralph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/graph"
	"github.com/slocombe/foreman/internal/logging"
	"github.com/slocombe/foreman/internal/worker"
)

// LoopStatus is the controller's lifecycle state.
type LoopStatus string

const (
	StatusIdle      LoopStatus = "idle"
	StatusRunning   LoopStatus = "running"
	StatusPaused    LoopStatus = "paused"
	StatusCompleted LoopStatus = "completed"
	StatusFailed    LoopStatus = "failed"
	StatusAborted   LoopStatus = "aborted"
)

// Config tunes one loop run.
type Config struct {
	// MaxIterations is the iteration budget; exceeding it ends the loop as
	// failed.
	MaxIterations int

	RunBuild bool
	RunLint  bool
	RunTests bool

	// ContinueOnLintFailure makes a failing lint check non-blocking for
	// loop exit.
	ContinueOnLintFailure bool

	// AbortOnWorkerFailure ends the loop as failed the moment a worker's
	// own execution fails, instead of trying another iteration.
	AbortOnWorkerFailure bool

	// OutputLimit bounds captured check output in bytes.
	OutputLimit int

	// HistoryWindow is how many prior-iteration summaries feed the prompt.
	HistoryWindow int

	// WorkDir is where the worker and checks operate.
	WorkDir string

	// Checks carries the commands behind each category.
	Checks worker.CheckConfig
}

// withDefaults fills the zero values a caller may leave unset.
func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.OutputLimit <= 0 {
		c.OutputLimit = 4096
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 3
	}
	c.Checks.Build = c.RunBuild
	c.Checks.Lint = c.RunLint
	c.Checks.Test = c.RunTests
	if c.Checks.WorkDir == "" {
		c.Checks.WorkDir = c.WorkDir
	}
	return c
}

// IterationResult records one iteration's outcome.
type IterationResult struct {
	Iteration     int           `json:"iteration"`
	WorkerSuccess bool          `json:"worker_success"`
	ChecksPassed  bool          `json:"checks_passed"`
	Duration      time.Duration `json:"duration"`
	Summary       string        `json:"summary"`
}

// RunSummary is the loop's terminal report, with the last checklist
// snapshot preserved for diagnosis.
type RunSummary struct {
	Status     LoopStatus        `json:"status"`
	Iterations int               `json:"iterations"`
	Results    []IterationResult `json:"results"`
	Checklist  []ChecklistItem   `json:"checklist"`
}

// Controller drives one task through the iteration loop. A Controller is
// single-use: construct, Run once, inspect the summary.
type Controller struct {
	cfg        Config
	task       *graph.Task
	newRuntime worker.Factory
	verifier   worker.Verifier
	bus        *event.Bus
	logger     *logging.Logger

	mu        sync.Mutex
	status    LoopStatus
	iteration int
	checklist *Checklist
	results   []IterationResult
	resumeCh  chan struct{}
	cancelRun context.CancelFunc

	abortOnce sync.Once
	abortCh   chan struct{}
}

// NewController creates an idle controller for one task. bus and logger may
// be nil.
func NewController(task *graph.Task, cfg Config, factory worker.Factory, verifier worker.Verifier, bus *event.Bus, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:        cfg,
		task:       task,
		newRuntime: factory,
		verifier:   verifier,
		bus:        bus,
		logger:     logger.WithTask(task.ID),
		status:     StatusIdle,
		checklist:  NewChecklist(cfg),
		abortCh:    make(chan struct{}),
	}
}

// Status returns the controller's current lifecycle state.
func (c *Controller) Status() LoopStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Checklist returns the live checklist.
func (c *Controller) Checklist() *Checklist {
	return c.checklist
}

// Abort signals the in-flight worker and marks the loop aborted. Safe to
// call from any goroutine, any number of times.
func (c *Controller) Abort() {
	c.abortOnce.Do(func() { close(c.abortCh) })
	c.mu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.mu.Unlock()
}

// Pause freezes the loop between iterations. The in-flight iteration, if
// any, still finishes; the checklist is preserved.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusRunning {
		return
	}
	c.status = StatusPaused
	c.resumeCh = make(chan struct{})
	c.publish(event.LoopPaused{TaskID: c.task.ID})
	c.logger.Info("loop paused")
}

// Resume unfreezes a paused loop.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPaused {
		return
	}
	c.status = StatusRunning
	close(c.resumeCh)
	c.resumeCh = nil
	c.publish(event.LoopResumed{TaskID: c.task.ID})
	c.logger.Info("loop resumed")
}

// Run executes the loop to a terminal state. It returns the summary along
// with ErrLoopAborted or ErrWorkerFailed when the loop did not complete.
func (c *Controller) Run(ctx context.Context) (RunSummary, error) {
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return RunSummary{}, errors.Wrapf(errors.ErrInvalidInput,
			"loop already ran (status %s)", c.status)
	}
	c.status = StatusRunning
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.mu.Unlock()
	defer cancel()

	c.publish(event.LoopStart{TaskID: c.task.ID})
	c.logger.Info("loop started", "max_iterations", c.cfg.MaxIterations)

	for {
		if err := c.waitWhilePaused(runCtx); err != nil {
			return c.finish(StatusAborted, errors.ErrLoopAborted)
		}

		if c.aborted(runCtx) {
			return c.finish(StatusAborted, errors.ErrLoopAborted)
		}
		// The all-pass exit is suppressed before the first iteration has
		// actually verified anything.
		if c.iteration > 0 && c.checklist.AllRequiredPass() {
			return c.finish(StatusCompleted, nil)
		}
		if c.iteration >= c.cfg.MaxIterations {
			c.logger.Warn("iteration budget exhausted")
			return c.finish(StatusFailed, errors.Wrapf(errors.ErrWorkerFailed,
				"iteration budget of %d exhausted", c.cfg.MaxIterations))
		}

		c.iteration++
		iter := c.iteration
		c.publish(event.IterationStart{TaskID: c.task.ID, Iteration: iter})
		start := time.Now()

		result, workerErr := c.runWorker(runCtx)
		if workerErr != nil && c.cfg.AbortOnWorkerFailure {
			c.logger.Error("worker execution failed, aborting loop", "error", workerErr.Error())
			c.record(iter, false, false, start, "worker execution failed: "+workerErr.Error())
			return c.finish(StatusFailed, errors.Wrap(workerErr, "worker execution failed"))
		}
		if c.aborted(runCtx) {
			c.record(iter, false, false, start, "aborted mid-iteration")
			return c.finish(StatusAborted, errors.ErrLoopAborted)
		}

		checksPassed := c.verify(runCtx, result, workerErr)
		summary := c.summarize(workerErr, checksPassed)
		c.record(iter, workerErr == nil && result.Success, checksPassed, start, summary)
		c.publish(event.IterationComplete{TaskID: c.task.ID, Iteration: iter, Success: checksPassed})
		c.logger.Info("iteration complete", "iteration", iter, "checks_passed", checksPassed)
	}
}

// runWorker discards any previous worker and runs a fresh instance against
// this iteration's prompt.
func (c *Controller) runWorker(ctx context.Context) (worker.Result, error) {
	prompt := c.buildPrompt()
	runtime := c.newRuntime()
	if err := runtime.Initialize(ctx, c.task, c.cfg.WorkDir); err != nil {
		return worker.Result{}, errors.Wrap(err, "initialize worker")
	}
	return runtime.Propose(ctx, prompt)
}

// verify runs the configured checks and writes each outcome back into the
// checklist, truncating captured output. The implement item reflects the
// worker's own terminal outcome; disabled categories are marked skipped.
func (c *Controller) verify(ctx context.Context, result worker.Result, workerErr error) bool {
	implement := OutcomeFail
	if workerErr == nil && result.Success {
		implement = OutcomePass
	}
	c.checklist.Set(worker.CheckImplement, implement, truncate(result.Output, c.cfg.OutputLimit))

	results, err := c.verifier.RunChecks(ctx, c.cfg.Checks)
	if err != nil {
		c.logger.Error("verification run failed", "error", err.Error())
	}
	byID := make(map[string]worker.CheckResult, len(results))
	for _, r := range results {
		byID[r.CheckID] = r
	}

	for _, spec := range []struct {
		id      string
		enabled bool
	}{
		{worker.CheckBuild, c.cfg.RunBuild},
		{worker.CheckLint, c.cfg.RunLint},
		{worker.CheckTest, c.cfg.RunTests},
	} {
		if !c.cfg.hasItem(spec.id) {
			continue
		}
		if !spec.enabled {
			c.checklist.Set(spec.id, OutcomeSkip, "")
			continue
		}
		r, ok := byID[spec.id]
		switch {
		case !ok:
			c.checklist.Set(spec.id, OutcomeSkip, "")
		case r.Err != nil:
			c.checklist.Set(spec.id, OutcomeFail, truncate(r.Err.Error(), c.cfg.OutputLimit))
		case r.Passed:
			c.checklist.Set(spec.id, OutcomePass, truncate(r.Output, c.cfg.OutputLimit))
		default:
			c.checklist.Set(spec.id, OutcomeFail, truncate(r.Output, c.cfg.OutputLimit))
		}
	}

	return c.checklist.AllRequiredPass()
}

// hasItem reports whether the configuration puts this category on the
// checklist at all.
func (c Config) hasItem(id string) bool {
	switch id {
	case worker.CheckBuild:
		return c.RunBuild
	case worker.CheckLint:
		return c.RunLint
	case worker.CheckTest:
		return c.RunTests
	}
	return id == worker.CheckImplement
}

// buildPrompt is the task's own spec on the first iteration; afterwards it
// is the failed checks with their captured output plus a bounded window of
// prior-iteration summaries.
func (c *Controller) buildPrompt() string {
	if c.iteration == 1 {
		if c.task.Spec != "" {
			return c.task.Spec
		}
		return c.task.Title
	}

	var b strings.Builder
	b.WriteString("The previous attempt did not satisfy all checks.\n\nFailed checks:\n")
	for _, item := range c.checklist.FailedItems() {
		fmt.Fprintf(&b, "- %s:\n%s\n", item.ID, item.Output)
	}

	c.mu.Lock()
	results := c.results
	c.mu.Unlock()
	window := results
	if len(window) > c.cfg.HistoryWindow {
		window = window[len(window)-c.cfg.HistoryWindow:]
	}
	if len(window) > 0 {
		b.WriteString("\nPrior attempts:\n")
		for _, r := range window {
			fmt.Fprintf(&b, "- iteration %d: %s\n", r.Iteration, r.Summary)
		}
	}
	return b.String()
}

func (c *Controller) summarize(workerErr error, checksPassed bool) string {
	if workerErr != nil {
		return "worker execution failed: " + workerErr.Error()
	}
	if checksPassed {
		return "all required checks passed"
	}
	var failed []string
	for _, item := range c.checklist.FailedItems() {
		failed = append(failed, item.ID)
	}
	return "failed checks: " + strings.Join(failed, ", ")
}

func (c *Controller) record(iter int, workerOK, checksPassed bool, start time.Time, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, IterationResult{
		Iteration:     iter,
		WorkerSuccess: workerOK,
		ChecksPassed:  checksPassed,
		Duration:      time.Since(start),
		Summary:       summary,
	})
}

// waitWhilePaused blocks between iterations while the loop is paused.
func (c *Controller) waitWhilePaused(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.status != StatusPaused {
			c.mu.Unlock()
			return nil
		}
		resume := c.resumeCh
		c.mu.Unlock()

		select {
		case <-resume:
		case <-c.abortCh:
			return errors.ErrLoopAborted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) aborted(ctx context.Context) bool {
	select {
	case <-c.abortCh:
		return true
	default:
	}
	return ctx.Err() != nil
}

func (c *Controller) finish(status LoopStatus, err error) (RunSummary, error) {
	c.mu.Lock()
	c.status = status
	summary := RunSummary{
		Status:     status,
		Iterations: c.iteration,
		Results:    append([]IterationResult(nil), c.results...),
		Checklist:  c.checklist.Snapshot(),
	}
	c.mu.Unlock()

	c.publish(event.LoopComplete{
		TaskID:     c.task.ID,
		Outcome:    string(status),
		Iterations: summary.Iterations,
	})
	c.logger.Info("loop finished", "outcome", string(status), "iterations", summary.Iterations)
	return summary, err
}

func (c *Controller) publish(ev event.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// truncate bounds s to limit bytes, marking the cut.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "\n[truncated]"
}
