package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/graphfile"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan FILE",
		Short: "Print the schedule of a graph without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := graphfile.Load(args[0])
			if err != nil {
				return err
			}
			in, err := f.Build(&backend.HostDevice{}, nil)
			if err != nil {
				return err
			}
			defer in.Close()
			if err := in.Graph.Setup(); err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), in.Graph)
			return nil
		},
	}
	return cmd
}

func printPlan(w io.Writer, g *rendergraph.Graph) {
	fmt.Fprintf(w, "graph %s\n", g.Label())
	deps := g.Dependencies()
	for i, level := range g.Levels() {
		fmt.Fprintf(w, "level %d:\n", i)
		for _, n := range level {
			if next := deps[n]; len(next) > 0 {
				fmt.Fprintf(w, "  %s -> %s\n", n, strings.Join(next, ", "))
			} else {
				fmt.Fprintf(w, "  %s\n", n)
			}
		}
	}
	fmt.Fprintf(w, "start points: %s\n", strings.Join(g.StartPoints(), ", "))
	if culled := g.Culled(); len(culled) > 0 {
		fmt.Fprintf(w, "culled: %s\n", strings.Join(culled, ", "))
	}
	life := g.Lifetimes()
	fmt.Fprintln(w, "lifetimes:")
	for _, id := range slices.Sorted(maps.Keys(life)) {
		fmt.Fprintf(w, "  %s: %d\n", id, life[id])
	}
}
