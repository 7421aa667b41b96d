package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <task-file>",
	Short: "Validate a task file",
	Long: `Load a YAML task file, check it for unknown dependencies, duplicate
edges, and cycles, and print the dependency layering.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	g, err := loadTaskFile(args[0], nil)
	if err != nil {
		return err
	}

	topo := g.TopologicalOrder()
	if topo.HasCycle {
		return fmt.Errorf("graph contains a cycle involving: %s",
			strings.Join(topo.Unlayered, ", "))
	}

	fmt.Printf("Graph: %s\n", g.ID())
	fmt.Printf("Tasks: %d, connections: %d\n\n", g.Len(), len(g.Connections()))
	for i, layer := range topo.Layers {
		fmt.Printf("Layer %d: %s\n", i, strings.Join(layer, ", "))
	}
	fmt.Println("\nOK")
	return nil
}
