package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	graphsink "github.com/i5heu/ouroboros-graph"
)

func (c *CLI) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print node and edge counts of a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, gs *graphsink.Container, _ graphsink.FileConfig) error {
				return c.printStats(ctx, gs)
			})
		},
	}
}

func (c *CLI) printStats(ctx context.Context, gs *graphsink.Container) error {
	nodes, err := gs.NodeCount(ctx)
	if err != nil {
		return err
	}
	edges, err := gs.EdgeCount(ctx)
	if err != nil {
		return err
	}
	step, err := gs.Step(ctx)
	if err != nil {
		return err
	}
	attrs, err := gs.GraphAttributes(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Graph statistics:")
	fmt.Fprintf(c.out, "  Nodes:        %d\n", nodes)
	fmt.Fprintf(c.out, "  Edges:        %d\n", edges)
	fmt.Fprintf(c.out, "  Step:         %g\n", step)
	fmt.Fprintf(c.out, "  Graph attrs:  %d\n", len(attrs))
	return nil
}
