package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	graphsink "github.com/i5heu/ouroboros-graph"
	"github.com/i5heu/ouroboros-graph/pkg/generator"
)

type generateOptions struct {
	nodes       int
	links       int
	exact       bool
	seed        uint64
	steps       bool
	degreeAttr  string
	clear       bool
	metricsAddr string
}

func (c *CLI) newGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Feed a Barabási-Albert graph stream into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, gs *graphsink.Container, fc graphsink.FileConfig) error {
				addr := opts.metricsAddr
				if !cmd.Flags().Changed("metrics-addr") {
					addr = fc.MetricsAddr
				}
				if addr != "" {
					stop := c.serveMetrics(addr)
					defer stop()
				}
				return c.generate(ctx, gs, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.nodes, "nodes", "n", 1000, "number of growth steps")
	flags.IntVar(&opts.links, "links", 1, "maximum edges added per step")
	flags.BoolVar(&opts.exact, "exact", false, "add exactly --links edges per step")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	flags.BoolVar(&opts.steps, "steps", false, "emit a step notification per growth step")
	flags.StringVar(&opts.degreeAttr, "degree-attr", "", "keep node degrees in this attribute")
	flags.BoolVar(&opts.clear, "clear", false, "clear the stored graph first")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func (c *CLI) generate(ctx context.Context, gs *graphsink.Container, opts generateOptions) error {
	genOpts := []generator.Option{generator.WithMaxLinks(opts.links)}
	if opts.exact {
		genOpts = append(genOpts, generator.WithExactLinks())
	}
	if opts.seed != 0 {
		genOpts = append(genOpts, generator.WithSeed(opts.seed))
	}
	if opts.steps {
		genOpts = append(genOpts, generator.WithSteps())
	}
	if opts.degreeAttr != "" {
		genOpts = append(genOpts, generator.WithDegreeAttribute(opts.degreeAttr))
	}

	gen := generator.NewBarabasiAlbert(genOpts...)
	gen.AddSink(gs)

	if opts.clear {
		if err := gs.GraphCleared(gen.SourceID(), 0); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := gen.Begin(); err != nil {
		return err
	}

	progressEvery := max(opts.nodes/10, 1)
	for i := 0; i < opts.nodes; i++ {
		if err := ctx.Err(); err != nil {
			c.log.WithField("steps", i).Warn("generation interrupted")
			return err
		}
		if i%progressEvery == 0 {
			c.log.WithFields(logrus.Fields{
				"step":    i,
				"of":      opts.nodes,
				"pending": gs.Pending(),
			}).Info("generating")
		}
		if err := gen.NextEvents(); err != nil {
			return err
		}
	}
	if err := gen.End(); err != nil {
		return err
	}

	if err := gs.Flush(ctx); err != nil {
		return err
	}
	stats := gs.Stats()
	c.log.WithFields(logrus.Fields{
		"nodes":    gen.Nodes(),
		"flushes":  stats.Flushes,
		"lost":     stats.EventsLost,
		"warnings": len(gs.Warnings()),
		"duration": time.Since(start),
	}).Info("generation finished")

	return nil
}

// serveMetrics exposes the default Prometheus registry until the returned
// function is called.
func (c *CLI) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		c.log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.WithError(err).Error("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
