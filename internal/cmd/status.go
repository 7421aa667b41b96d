package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slocombe/foreman/internal/config"
	"github.com/slocombe/foreman/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <graph-id>",
	Short: "Show a saved graph's task status",
	Long:  `Display each task's status, blocked flag, and readiness for a graph in the store.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	s, err := store.NewFileStore(cfg.Store.Dir, nil)
	if err != nil {
		return err
	}
	g, found, err := s.Load(args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No saved graph %q\n", args[0])
		return nil
	}

	fmt.Printf("Graph: %s (%d tasks)\n\n", g.ID(), g.Len())
	topo := g.TopologicalOrder()
	for _, id := range topo.Order {
		task := g.Task(id)
		marker := " "
		if g.IsReady(id) {
			marker = ">"
		}
		fmt.Printf("%s %-30s %-18s blocked=%-5v deps=%d\n",
			marker, task.Title, task.Status, task.Blocked, len(task.Dependencies))
	}
	if topo.HasCycle {
		fmt.Printf("\nWARNING: cycle detected involving %v\n", topo.Unlayered)
	}
	return nil
}
