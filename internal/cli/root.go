// Package cli implements the graphsink command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	graphsink "github.com/i5heu/ouroboros-graph"
)

// CLI holds the output streams and the flags shared by every command.
type CLI struct {
	out    io.Writer
	errOut io.Writer
	log    *logrus.Logger

	configPath string
	path       string
	mode       string
	threshold  int
	verbose    bool
}

func New(out, errOut io.Writer) *CLI {
	log := logrus.New()
	log.SetOutput(errOut)
	log.SetLevel(logrus.InfoLevel)
	return &CLI{out: out, errOut: errOut, log: log}
}

func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "graphsink",
		Short:        "Mirror graph event streams into a badger-backed graph store",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.log.SetLevel(logrus.DebugLevel)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	flags.StringVarP(&c.path, "path", "p", "", "store directory (overrides config)")
	flags.StringVar(&c.mode, "mode", "", "consistency mode: lenient, strict or autocreate (overrides config)")
	flags.IntVar(&c.threshold, "threshold", 0, "flush threshold (overrides config)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.newGenerateCmd())
	root.AddCommand(c.newStatsCmd())
	root.AddCommand(c.newBackupCmd())
	root.AddCommand(c.newRestoreCmd())
	root.AddCommand(c.newCompactCmd())

	return root
}

// settings merges the config file with the command line. Flags win.
func (c *CLI) settings(cmd *cobra.Command) (graphsink.Config, graphsink.FileConfig, error) {
	fc := graphsink.FileConfig{
		FlushThreshold: graphsink.DefaultFlushThreshold,
		LogLevel:       logrus.InfoLevel.String(),
	}
	if c.configPath != "" {
		loaded, err := graphsink.LoadConfig(c.configPath)
		if err != nil {
			return graphsink.Config{}, fc, err
		}
		fc = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("path") {
		fc.Path = c.path
	}
	if flags.Changed("mode") {
		fc.ConsistencyMode = c.mode
	}
	if flags.Changed("threshold") {
		fc.FlushThreshold = c.threshold
	}
	if c.verbose {
		fc.LogLevel = logrus.DebugLevel.String()
	}

	if fc.Path == "" && !fc.InMemory {
		return graphsink.Config{}, fc, fmt.Errorf("no store path: use --path or set path in the config file")
	}

	conf, err := fc.Config()
	if err != nil {
		return graphsink.Config{}, fc, err
	}
	conf.Logger.SetOutput(c.errOut)
	c.log = conf.Logger
	return conf, fc, nil
}

// withContainer opens the configured store, runs fn and closes the
// container again, even when fn fails or ctx was cancelled.
func (c *CLI) withContainer(cmd *cobra.Command, fn func(ctx context.Context, gs *graphsink.Container, fc graphsink.FileConfig) error) (err error) {
	conf, fc, err := c.settings(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	gs, err := graphsink.Open(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := gs.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, gs, fc)
}
