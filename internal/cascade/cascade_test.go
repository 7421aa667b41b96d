package cascade

import (
	"reflect"
	"testing"

	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/graph"
	"github.com/slocombe/foreman/internal/state"
)

// buildGraph creates a graph with the given task IDs and edges, deriving
// initial statuses: tasks without dependencies start ready, others blocked.
func buildGraph(t *testing.T, ids []string, edges [][2]string) *graph.Graph {
	t.Helper()
	g := graph.New("test-graph", nil)
	for _, id := range ids {
		task := graph.NewTask(id, "")
		task.ID = id
		if err := g.AddNode(task); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddConnection(e[0], e[1]); err != nil {
			t.Fatalf("AddConnection(%s, %s): %v", e[0], e[1], err)
		}
	}
	for _, task := range g.Tasks() {
		if len(task.Dependencies) == 0 {
			task.Status = state.TaskReady
			task.Blocked = false
		}
	}
	return g
}

func complete(t *testing.T, g *graph.Graph, id string) {
	t.Helper()
	task := g.Task(id)
	if task == nil {
		t.Fatalf("no task %s", id)
	}
	task.Status = state.TaskDone
	task.Blocked = false
}

func TestOnCompletionLinearChain(t *testing.T) {
	// B depends on A, C depends on B.
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	engine := New(nil, nil)

	if g.Task("A").Status != state.TaskReady {
		t.Fatalf("A should start ready, got %s", g.Task("A").Status)
	}
	if g.Task("B").Status != state.TaskBlocked || g.Task("C").Status != state.TaskBlocked {
		t.Fatal("B and C should start blocked")
	}

	complete(t, g, "A")
	unblocked := engine.OnCompletion("A", g)
	if !reflect.DeepEqual(unblocked, []string{"B"}) {
		t.Fatalf("completing A unblocked %v, want [B]", unblocked)
	}
	if g.Task("B").Status != state.TaskReady || g.Task("B").Blocked {
		t.Errorf("B = %s blocked=%v, want ready", g.Task("B").Status, g.Task("B").Blocked)
	}
	if g.Task("C").Status != state.TaskBlocked || !g.Task("C").Blocked {
		t.Errorf("C must still be blocked, got %s", g.Task("C").Status)
	}

	complete(t, g, "B")
	unblocked = engine.OnCompletion("B", g)
	if !reflect.DeepEqual(unblocked, []string{"C"}) {
		t.Fatalf("completing B unblocked %v, want [C]", unblocked)
	}
	if g.Task("C").Status != state.TaskReady {
		t.Errorf("C = %s, want ready", g.Task("C").Status)
	}
}

func TestOnCompletionGuardsMultipleDependencies(t *testing.T) {
	// C depends on both A and B.
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "C"}, {"B", "C"}})
	engine := New(nil, nil)

	complete(t, g, "A")
	unblocked := engine.OnCompletion("A", g)
	if len(unblocked) != 0 {
		t.Fatalf("C unblocked prematurely: %v", unblocked)
	}
	if !g.Task("C").Blocked || g.Task("C").Status != state.TaskBlocked {
		t.Error("C must remain blocked until all dependencies complete")
	}

	complete(t, g, "B")
	unblocked = engine.OnCompletion("B", g)
	if !reflect.DeepEqual(unblocked, []string{"C"}) {
		t.Fatalf("unblocked = %v, want [C]", unblocked)
	}
	if g.Task("C").Status != state.TaskReady {
		t.Errorf("C = %s, want ready", g.Task("C").Status)
	}
}

func TestOnCompletionPublishesDependencyCompleted(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})
	bus := event.NewBus()
	var got []string
	bus.Subscribe(event.TypeDependencyCompleted, func(e event.Event) {
		got = append(got, e.(event.DependencyCompleted).ItemID)
	})
	engine := New(nil, bus)

	complete(t, g, "A")
	engine.OnCompletion("A", g)
	if !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("dependencyCompleted events = %v, want [A]", got)
	}
}

func TestOnFailureReturnsTransitiveSetWithoutMutation(t *testing.T) {
	// A -> B -> C, A -> D. Failing A affects B, D, C (BFS order).
	g := buildGraph(t, []string{"A", "B", "C", "D"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"A", "D"}})
	engine := New(nil, nil)

	g.Task("B").Status = state.TaskDeveloping
	g.Task("B").Blocked = false

	affected := engine.OnFailure("A", g)
	if !reflect.DeepEqual(affected, []string{"B", "D", "C"}) {
		t.Errorf("affected = %v, want [B D C]", affected)
	}

	// In-flight work must not be touched.
	if g.Task("B").Status != state.TaskDeveloping || g.Task("B").Blocked {
		t.Errorf("B mutated by failure walk: %s blocked=%v",
			g.Task("B").Status, g.Task("B").Blocked)
	}

	if affected := engine.OnFailure("missing", g); affected != nil {
		t.Errorf("unknown task should yield nil, got %v", affected)
	}
}

func TestResetSubtree(t *testing.T) {
	// A -> B -> C, with X -> C as an external dependency. Everything done.
	g := buildGraph(t, []string{"A", "B", "C", "X"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"X", "C"}})
	engine := New(nil, nil)
	for _, id := range []string{"A", "B", "C", "X"} {
		complete(t, g, id)
	}
	g.Task("B").Feedback = "stale feedback"
	g.Task("B").WorkerID = "worker-1"

	reset := engine.ResetSubtree("B", g)
	if !reflect.DeepEqual(reset, []string{"B", "C"}) {
		t.Fatalf("reset = %v, want [B C]", reset)
	}

	// A and X are upstream and untouched.
	if g.Task("A").Status != state.TaskDone || g.Task("X").Status != state.TaskDone {
		t.Error("upstream tasks must not be reset")
	}
	// B's only dependency (A) is complete, so it comes back ready.
	if g.Task("B").Status != state.TaskReady || g.Task("B").Blocked {
		t.Errorf("B = %s blocked=%v, want ready", g.Task("B").Status, g.Task("B").Blocked)
	}
	if g.Task("B").Feedback != "" || g.Task("B").WorkerID != "" {
		t.Error("reset should clear feedback and worker assignment")
	}
	// C depends on B (now incomplete) and X (done): blocked.
	if g.Task("C").Status != state.TaskBlocked || !g.Task("C").Blocked {
		t.Errorf("C = %s blocked=%v, want blocked", g.Task("C").Status, g.Task("C").Blocked)
	}
}

func TestResetSubtreeSkipsAlreadyBlocked(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})
	engine := New(nil, nil)
	complete(t, g, "A")

	// B is still blocked; resetting A should reset A but skip B.
	reset := engine.ResetSubtree("A", g)
	if !reflect.DeepEqual(reset, []string{"A"}) {
		t.Errorf("reset = %v, want [A]", reset)
	}
	if g.Task("A").Status != state.TaskReady {
		t.Errorf("A = %s, want ready", g.Task("A").Status)
	}
}

func TestRecalculateAllIsIdempotent(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	engine := New(nil, nil)

	// Simulate a bulk load with stale flags: A done, but B never got the
	// completion cascade.
	complete(t, g, "A")

	first := engine.RecalculateAll(g)
	if !reflect.DeepEqual(first, []string{"B"}) {
		t.Fatalf("first pass changed %v, want [B]", first)
	}
	if g.Task("B").Status != state.TaskReady || g.Task("B").Blocked {
		t.Errorf("B = %s blocked=%v, want ready", g.Task("B").Status, g.Task("B").Blocked)
	}

	second := engine.RecalculateAll(g)
	if len(second) != 0 {
		t.Errorf("second pass must be a no-op, changed %v", second)
	}
}

func TestRecalculateAllReblocksStaleReady(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}})
	engine := New(nil, nil)

	// Stale state: B claims ready but A is not complete.
	g.Task("B").Status = state.TaskReady
	g.Task("B").Blocked = false

	changed := engine.RecalculateAll(g)
	if !reflect.DeepEqual(changed, []string{"B"}) {
		t.Fatalf("changed = %v, want [B]", changed)
	}
	if g.Task("B").Status != state.TaskBlocked || !g.Task("B").Blocked {
		t.Errorf("B = %s blocked=%v, want blocked", g.Task("B").Status, g.Task("B").Blocked)
	}
}

func TestRecalculateAllSkipsActiveAndTerminal(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"A", "C"}})
	engine := New(nil, nil)

	g.Task("B").Status = state.TaskDeveloping
	g.Task("B").Blocked = false
	g.Task("C").Status = state.TaskFailed
	g.Task("C").Blocked = false

	changed := engine.RecalculateAll(g)
	if len(changed) != 0 {
		t.Errorf("active/terminal tasks must not be touched, changed %v", changed)
	}
}
