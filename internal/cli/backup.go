package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	graphsink "github.com/i5heu/ouroboros-graph"
	"github.com/i5heu/ouroboros-graph/internal/backup"
)

func (c *CLI) newBackupCmd() *cobra.Command {
	var (
		out   string
		since uint64
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed backup of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, gs *graphsink.Container, _ graphsink.FileConfig) (err error) {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create backup file: %w", err)
				}
				defer func() {
					if closeErr := f.Close(); closeErr != nil && err == nil {
						err = closeErr
					}
				}()

				if err := gs.Flush(ctx); err != nil {
					return err
				}
				m := backup.NewManager(gs.Store(), c.log)
				if err := m.BackupData(ctx, f, since); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "backup written to %s (%d bytes, version %d)\n",
					out, m.Status().LastBackupSize, m.Status().LastVersion)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "graph.bak.lzma", "backup file")
	cmd.Flags().Uint64Var(&since, "since", 0, "only include entries newer than this version")
	return cmd
}

func (c *CLI) newRestoreCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Load a backup written by the backup command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, gs *graphsink.Container, _ graphsink.FileConfig) error {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("open backup file: %w", err)
				}
				defer f.Close()

				return backup.NewManager(gs.Store(), c.log).RestoreData(ctx, f)
			})
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "graph.bak.lzma", "backup file")
	return cmd
}

func (c *CLI) newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Flatten the store and reclaim value log space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, gs *graphsink.Container, _ graphsink.FileConfig) error {
				if err := gs.Flush(ctx); err != nil {
					return err
				}
				return gs.Store().Clean()
			})
		},
	}
}
