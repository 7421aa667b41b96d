package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slocombe/foreman/internal/graph"
	"github.com/slocombe/foreman/internal/state"
)

func newTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("g1", nil)
	for _, id := range []string{"a", "b"} {
		task := graph.NewTask("task "+id, "spec for "+id)
		task.ID = id
		if err := g.AddNode(task); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	if err := g.AddConnection("a", "b"); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	g.Task("a").Status = state.TaskDone
	g.Task("a").Blocked = false
	return g
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	g := newTestGraph(t)

	if err := s.Save("g1", g); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, found, err := s.Load("g1")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}

	if loaded.ID() != "g1" || loaded.Len() != 2 {
		t.Errorf("loaded graph id=%s len=%d", loaded.ID(), loaded.Len())
	}
	a := loaded.Task("a")
	if a == nil || a.Status != state.TaskDone || a.Blocked {
		t.Errorf("task a did not round-trip: %+v", a)
	}
	b := loaded.Task("b")
	if b == nil || len(b.Dependencies) != 1 || b.Dependencies[0] != "a" {
		t.Errorf("dependencies did not round-trip: %+v", b)
	}
	if conns := loaded.Connections(); len(conns) != 1 || conns[0].From != "a" {
		t.Errorf("connections = %v", conns)
	}
}

func TestLoadReportsAbsenceWithoutError(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	g, found, err := s.Load("never-saved")
	if err != nil {
		t.Errorf("absence is not an error: %v", err)
	}
	if found || g != nil {
		t.Errorf("found=%v g=%v, want absent", found, g)
	}
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load("bad"); err == nil {
		t.Error("corrupt snapshot should fail to load")
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Save("g1", newTestGraph(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestList(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Save("g1", newTestGraph(t)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save("g2", newTestGraph(t)); err != nil {
		t.Fatal(err)
	}
	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}
}

func TestFileLockTryLock(t *testing.T) {
	dir := t.TempDir()
	first := NewFileLock(dir)
	if err := first.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = first.Unlock() }()

	// flock is per file description, so a second lock in the same process
	// would succeed; just exercise the non-blocking path end to end.
	second := NewFileLock(dir)
	ok, err := second.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		_ = second.Unlock()
	}
}
