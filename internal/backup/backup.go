// Package backup writes and restores lzma-compressed snapshots of a graph store.
package backup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz/lzma"

	"github.com/i5heu/ouroboros-graph/internal/store"
)

// maxPendingWrites bounds badger's in-flight batches during Load.
const maxPendingWrites = 256

// Status describes the last backup taken by a Manager.
type Status struct {
	// LastBackup is the Unix timestamp of the last successful backup.
	LastBackup int64
	// LastBackupSize is the compressed size of the last backup in bytes.
	LastBackupSize int64
	// LastVersion is the badger version the last backup covered. Passing it
	// as since to the next backup makes that one incremental.
	LastVersion      uint64
	BackupInProgress bool
}

// Manager backs up and restores one store.
type Manager struct {
	store  *store.Store
	log    *logrus.Logger
	status Status
}

func NewManager(st *store.Store, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{store: st, log: log}
}

// BackupData streams every entry newer than since into writer. since=0
// writes a full backup.
func (m *Manager) BackupData(ctx context.Context, writer io.Writer, since uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.status.BackupInProgress = true
	defer func() {
		m.status.BackupInProgress = false
	}()

	counter := &countingWriter{w: writer}
	lw, err := lzma.NewWriter(counter)
	if err != nil {
		return fmt.Errorf("backup: create compressor: %w", err)
	}

	version, err := m.store.DB().Backup(lw, since)
	if err != nil {
		_ = lw.Close()
		return fmt.Errorf("backup: %w", err)
	}
	if err := lw.Close(); err != nil {
		return fmt.Errorf("backup: finish compressor: %w", err)
	}

	m.status.LastBackup = time.Now().Unix()
	m.status.LastBackupSize = counter.n
	m.status.LastVersion = version

	m.log.WithFields(logrus.Fields{
		"bytes":   counter.n,
		"version": version,
		"since":   since,
	}).Info("backup written")

	return nil
}

// RestoreData loads a backup produced by BackupData. Entries are written
// over whatever the store already holds.
func (m *Manager) RestoreData(ctx context.Context, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lr, err := lzma.NewReader(reader)
	if err != nil {
		return fmt.Errorf("restore: open compressed stream: %w", err)
	}
	if err := m.store.DB().Load(lr, maxPendingWrites); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	m.log.Info("backup restored")
	return nil
}

func (m *Manager) Status() Status {
	return m.status
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
