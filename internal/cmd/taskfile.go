package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/slocombe/foreman/internal/event"
	"github.com/slocombe/foreman/internal/graph"
)

// taskFile is the YAML authoring format for a graph: a flat task list with
// dependency references by ID.
type taskFile struct {
	ID    string `yaml:"id"`
	Tasks []struct {
		ID        string   `yaml:"id"`
		Title     string   `yaml:"title"`
		Spec      string   `yaml:"spec"`
		DependsOn []string `yaml:"depends_on"`
	} `yaml:"tasks"`
}

// loadTaskFile reads a YAML task list and builds a graph through the
// validated operations, so unknown dependencies, duplicates, and cycles
// surface as errors with the offending edge named.
func loadTaskFile(path string, bus *event.Bus) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if tf.ID == "" {
		tf.ID = "default"
	}

	g := graph.New(tf.ID, bus)
	for _, t := range tf.Tasks {
		task := graph.NewTask(t.Title, t.Spec)
		if t.ID != "" {
			task.ID = t.ID
		}
		if err := g.AddNode(task); err != nil {
			return nil, fmt.Errorf("task %q: %w", task.ID, err)
		}
	}
	for _, t := range tf.Tasks {
		for _, dep := range t.DependsOn {
			if err := g.AddConnection(dep, t.ID); err != nil {
				return nil, fmt.Errorf("dependency %s -> %s: %w", dep, t.ID, err)
			}
		}
	}
	return g, nil
}
