package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slocombe/foreman/internal/cascade"
	"github.com/slocombe/foreman/internal/config"
	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/graph"
	"github.com/slocombe/foreman/internal/logging"
	"github.com/slocombe/foreman/internal/pipeline"
	"github.com/slocombe/foreman/internal/ralph"
	"github.com/slocombe/foreman/internal/slot"
	"github.com/slocombe/foreman/internal/state"
	"github.com/slocombe/foreman/internal/store"
	"github.com/slocombe/foreman/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run <task-file>",
	Short: "Drive a task graph through the pipeline",
	Long: `Load a YAML task file and process every task: dependencies gate
readiness, each development attempt runs the bounded iteration loop under
an execution-slot token, and verification failures return tasks to
development. The graph is saved to the store as tasks finish.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(cfg.Worker.Command) == 0 {
		return fmt.Errorf("worker.command is not configured")
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	bus := event.NewBus()
	g, err := loadTaskFile(args[0], bus)
	if err != nil {
		return err
	}

	st, err := store.NewFileStore(cfg.Store.Dir, bus)
	if err != nil {
		return err
	}

	// Derive initial readiness from the dependency structure.
	engine := cascade.New(logger, bus)
	engine.RecalculateAll(g)
	if err := st.Save(g.ID(), g); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := newOrchestration(cfg, g, st, bus, logger)
	orch.start(ctx)
	defer orch.stopAll()

	err = orch.wait(ctx)
	if saveErr := st.Save(g.ID(), g); saveErr != nil {
		logger.Error("final save failed", "error", saveErr.Error())
	}
	orch.printSummary()
	return err
}

// orchestration is the process composition root: one graph, one slot pool,
// one task router with its stage managers.
type orchestration struct {
	cfg    *config.Config
	g      *graph.Graph
	st     store.Store
	bus    *event.Bus
	logger *logging.Logger

	slots    *slot.Service
	router   *pipeline.Router[*graph.Task]
	verifier worker.Verifier
	factory  worker.Factory

	nextSlot atomic.Uint64
}

func newOrchestration(cfg *config.Config, g *graph.Graph, st store.Store, bus *event.Bus, logger *logging.Logger) *orchestration {
	o := &orchestration{
		cfg:      cfg,
		g:        g,
		st:       st,
		bus:      bus,
		logger:   logger,
		slots:    slot.NewPool(cfg.Slots.PoolSize, logger),
		verifier: worker.NewCommandVerifier(logger),
		factory:  worker.NewCommandRuntime(cfg.Worker.Command, logger),
	}

	interval := cfg.Pipeline.TickInterval()
	o.router = pipeline.NewRouter[*graph.Task](pipeline.TaskRouterConfig(bus, logger))

	// The blocked and ready stages are pure dispatch: their process is a
	// no-op whose routing moves unblocked items into development.
	blockedMgr := pipeline.NewManager("blocked", interval,
		func(ctx context.Context, task *graph.Task) error { return nil }, logger)
	readyMgr := pipeline.NewManager("ready", interval,
		func(ctx context.Context, task *graph.Task) error { return nil }, logger)
	developMgr := pipeline.NewManager("develop", interval, o.develop, logger)
	verifyMgr := pipeline.NewManager("verify", interval, o.verify, logger)

	o.router.Register(state.TaskBlocked, blockedMgr, state.EventDependenciesMet, state.EventDependenciesMet)
	o.router.Register(state.TaskReady, readyMgr, state.EventStart, state.EventStart)
	o.router.Register(state.TaskDeveloping, developMgr, state.EventDevelopDone, state.EventDevelopFailed)
	o.router.Register(state.TaskVerifying, verifyMgr, state.EventVerifyDone, state.EventVerifyFailed)

	bus.Subscribe(event.TypeTaskCompleted, func(event.Event) {
		if err := st.Save(g.ID(), g); err != nil {
			logger.Error("save after completion failed", "error", err.Error())
		}
	})

	for _, task := range g.Tasks() {
		o.router.Add(task)
	}
	return o
}

func (o *orchestration) start(ctx context.Context) {
	o.router.StartAll(ctx)
}

func (o *orchestration) stopAll() {
	o.router.StopAll()
}

// develop runs the iteration loop for one task under its slot token.
func (o *orchestration) develop(ctx context.Context, task *graph.Task) error {
	slotID := o.assignSlot()
	if err := o.slots.Request(ctx, slotID, task.ID); err != nil {
		return err
	}
	defer o.slots.Release(slotID, task.ID)
	task.SetWorkerID(slotID)
	defer task.SetWorkerID("")

	controller := ralph.NewController(task, ralph.Config{
		MaxIterations:         o.cfg.Loop.MaxIterations,
		RunBuild:              o.cfg.Checks.RunBuild,
		RunLint:               o.cfg.Checks.RunLint,
		ContinueOnLintFailure: o.cfg.Checks.ContinueOnLintFailure,
		AbortOnWorkerFailure:  o.cfg.Loop.AbortOnWorkerFailure,
		OutputLimit:           o.cfg.Loop.OutputLimitBytes,
		HistoryWindow:         o.cfg.Loop.HistoryWindow,
		WorkDir:               o.cfg.Worker.Dir,
		Checks: worker.CheckConfig{
			BuildCommand: o.cfg.Checks.BuildCommand,
			LintCommand:  o.cfg.Checks.LintCommand,
			WorkDir:      o.cfg.Worker.Dir,
		},
	}, o.factory, o.verifier, o.bus, o.logger)

	summary, err := controller.Run(ctx)
	if err != nil {
		return err
	}
	if summary.Status != ralph.StatusCompleted {
		return errors.Wrapf(errors.ErrWorkerFailed, "loop ended %s after %d iterations",
			summary.Status, summary.Iterations)
	}
	return nil
}

// verify runs the test category under the task's slot token. Failure
// captures the output as feedback and routes the task back to development.
func (o *orchestration) verify(ctx context.Context, task *graph.Task) error {
	if !o.cfg.Checks.RunTests {
		return nil
	}

	slotID := o.assignSlot()
	if err := o.slots.Request(ctx, slotID, task.ID); err != nil {
		return err
	}
	defer o.slots.Release(slotID, task.ID)

	results, err := o.verifier.RunChecks(ctx, worker.CheckConfig{
		Test:        true,
		TestCommand: o.cfg.Checks.TestCommand,
		WorkDir:     o.cfg.Worker.Dir,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
		if !r.Passed {
			task.SetFeedback(r.Output)
			return errors.Wrapf(errors.ErrWorkerFailed, "check %s failed", r.CheckID)
		}
	}
	task.SetFeedback("")
	return nil
}

func (o *orchestration) assignSlot() string {
	ids := o.slots.SlotIDs()
	return ids[o.nextSlot.Add(1)%uint64(len(ids))]
}

// wait blocks until every task is terminal, no forward progress remains,
// or the context is cancelled.
func (o *orchestration) wait(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Pipeline.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		allTerminal := true
		anyRunnable := false
		anyFailed := false
		for _, task := range o.g.Tasks() {
			status := task.CurrentStatus()
			switch {
			case status == state.TaskFailed:
				anyFailed = true
			case state.IsTaskTerminal(status):
			default:
				allTerminal = false
				if !task.IsBlocked() {
					anyRunnable = true
				}
			}
		}

		if allTerminal {
			if anyFailed {
				return errors.Wrap(errors.ErrWorkerFailed, "one or more tasks failed")
			}
			return nil
		}
		if !anyRunnable {
			// Remaining tasks are blocked behind failures; nothing can move.
			return errors.Wrap(errors.ErrWorkerFailed, "pipeline stalled: remaining tasks are blocked")
		}
	}
}

func (o *orchestration) printSummary() {
	fmt.Printf("\nGraph %s:\n", o.g.ID())
	topo := o.g.TopologicalOrder()
	for _, id := range topo.Order {
		task := o.g.Task(id)
		line := fmt.Sprintf("  %-30s %s", task.Title, task.CurrentStatus())
		if msg := task.LastError(); msg != "" {
			line += "  (" + msg + ")"
		}
		fmt.Println(line)
	}
}
