package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/slocombe/foreman/internal/errors"
	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/graph"
)

// Store loads and saves graphs by ID. Load reports absence distinctly from
// failure: a graph that was never saved is not an error.
type Store interface {
	Load(graphID string) (*graph.Graph, bool, error)
	Save(graphID string, g *graph.Graph) error
}

// FileStore keeps one JSON snapshot per graph under a state directory.
type FileStore struct {
	dir string
	bus *event.Bus
}

// NewFileStore creates a store rooted at dir, creating it if needed. The
// bus, which may be nil, is attached to loaded graphs.
func NewFileStore(dir string, bus *event.Bus) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}
	return &FileStore{dir: dir, bus: bus}, nil
}

func (s *FileStore) path(graphID string) string {
	return filepath.Join(s.dir, graphID+".json")
}

// Load reads a graph snapshot and rebuilds the graph through its validated
// operations. The boolean is false when no snapshot exists.
func (s *FileStore) Load(graphID string) (*graph.Graph, bool, error) {
	lock := NewFileLock(s.dir)
	if err := lock.Lock(); err != nil {
		return nil, false, errors.Wrap(err, "acquire store lock")
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(s.path(graphID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read graph snapshot")
	}

	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal graph snapshot")
	}

	g, err := graph.FromSnapshot(&snap, s.bus)
	if err != nil {
		return nil, false, errors.Wrapf(err, "rebuild graph %s", graphID)
	}
	return g, true, nil
}

// Save writes the graph's snapshot atomically: the JSON goes to a
// temporary file first and is renamed into place under the store lock.
func (s *FileStore) Save(graphID string, g *graph.Graph) error {
	lock := NewFileLock(s.dir)
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire store lock")
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(g.Snapshot(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal graph snapshot")
	}

	target := s.path(graphID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write temp snapshot")
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return errors.Wrap(err, "rename temp snapshot")
	}
	return nil
}

// List returns the graph IDs with saved snapshots.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read store directory")
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}
