package graph

import (
	"reflect"
	"testing"

	"github.com/slocombe/foreman/internal/state"
)

func TestTopologicalOrderLayers(t *testing.T) {
	// a -> b -> d, a -> c -> d: a at layer 0, b and c at 1, d at 2.
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}})

	result := g.TopologicalOrder()
	if result.HasCycle {
		t.Fatal("acyclic graph reported a cycle")
	}

	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(result.Layers, want) {
		t.Errorf("Layers = %v, want %v", result.Layers, want)
	}
	if !reflect.DeepEqual(result.Order, []string{"a", "b", "c", "d"}) {
		t.Errorf("Order = %v", result.Order)
	}
}

func TestTopologicalOrderLongestPath(t *testing.T) {
	// d depends on both a (layer 0) and c (layer 1 via b... actually c
	// depends on b which depends on a). Longest path puts d at layer 3,
	// not layer 1.
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"a", "d"}, {"c", "d"}})

	result := g.TopologicalOrder()
	want := [][]string{{"a"}, {"b"}, {"c"}, {"d"}}
	if !reflect.DeepEqual(result.Layers, want) {
		t.Errorf("Layers = %v, want %v", result.Layers, want)
	}
}

func TestTopologicalOrderEmptyGraph(t *testing.T) {
	g := New("g", nil)
	result := g.TopologicalOrder()
	if result.HasCycle || len(result.Layers) != 0 || len(result.Order) != 0 {
		t.Errorf("empty graph result = %+v", result)
	}
}

func TestDependenciesAndDependentsInsertionOrder(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"}, nil)
	// d depends on c, then a, then b; order must be preserved.
	for _, from := range []string{"c", "a", "b"} {
		if err := g.AddConnection(from, "d"); err != nil {
			t.Fatalf("AddConnection(%s, d): %v", from, err)
		}
	}
	// a blocks d then c.
	if err := g.AddConnection("a", "c"); err != nil {
		t.Fatalf("AddConnection(a, c): %v", err)
	}

	if deps := g.DependenciesOf("d"); !reflect.DeepEqual(deps, []string{"c", "a", "b"}) {
		t.Errorf("DependenciesOf(d) = %v, want [c a b]", deps)
	}
	if dependents := g.DependentsOf("a"); !reflect.DeepEqual(dependents, []string{"d", "c"}) {
		t.Errorf("DependentsOf(a) = %v, want [d c]", dependents)
	}
	if g.DependenciesOf("missing") != nil {
		t.Error("unknown task should return nil dependencies")
	}
}

func TestIsReady(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c"}, [][2]string{{"a", "c"}, {"b", "c"}})
	g.Task("a").Status = state.TaskDone
	g.Task("b").Status = state.TaskReady
	g.Task("c").Status = state.TaskBlocked

	if g.IsReady("c") {
		t.Error("c has an incomplete dependency and must not be ready")
	}

	g.Task("b").Status = state.TaskDone
	if !g.IsReady("c") {
		t.Error("c should be ready once all dependencies are done")
	}

	// Active and terminal statuses are never ready.
	g.Task("c").Status = state.TaskDeveloping
	if g.IsReady("c") {
		t.Error("a developing task is not ready")
	}
	g.Task("c").Status = state.TaskDone
	if g.IsReady("c") {
		t.Error("a done task is not ready")
	}

	if g.IsReady("missing") {
		t.Error("unknown task is not ready")
	}
}

func TestIsReadyRecomputedAfterMutation(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	g.Task("a").Status = state.TaskDone
	g.Task("b").Status = state.TaskReady

	if !g.IsReady("b") {
		t.Fatal("b should be ready")
	}

	// Adding a new unmet dependency must immediately flip readiness;
	// nothing may be cached.
	c := NewTask("c", "")
	c.ID = "c"
	if err := g.AddNode(c); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddConnection("c", "b"); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	if g.IsReady("b") {
		t.Error("b gained an unmet dependency and must not be ready")
	}
}

func TestTopologicalOrderReportsCycleDistinctly(t *testing.T) {
	// Build a cycle by constructing a snapshot-style graph manually: the
	// validated operations refuse cycles, so seed the internal state the
	// way a corrupt load would.
	g := New("g", nil)
	for _, id := range []string{"a", "b", "c"} {
		task := NewTask(id, "")
		task.ID = id
		if err := g.AddNode(task); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	if err := g.AddConnection("a", "b"); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	g.connections = append(g.connections, Connection{From: "b", To: "c"}, Connection{From: "c", To: "b"})
	g.tasks["c"].Dependencies = append(g.tasks["c"].Dependencies, "b")
	g.tasks["b"].Dependencies = append(g.tasks["b"].Dependencies, "c")

	result := g.TopologicalOrder()
	if !result.HasCycle {
		t.Fatal("cycle not reported")
	}
	// The acyclic portion is still layered.
	if len(result.Layers) == 0 || result.Layers[0][0] != "a" {
		t.Errorf("acyclic portion not layered: %v", result.Layers)
	}
	if !reflect.DeepEqual(result.Unlayered, []string{"b", "c"}) {
		t.Errorf("Unlayered = %v, want [b c]", result.Unlayered)
	}
}
