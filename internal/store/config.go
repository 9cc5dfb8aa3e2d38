package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Path is the store directory. It is created when missing.
	Path string
	// InMemory keeps everything in memory. Path is ignored. Used by tests.
	InMemory bool
	// SyncWrites makes every commit durable before it returns.
	SyncWrites bool
	// MinimumFreeGB refuses to open a store on a nearly full disk. 0 disables the check.
	MinimumFreeGB int
	// MemTableSize overrides badger's memtable size in bytes. It also bounds
	// the size of one transaction. 0 keeps badger's default.
	MemTableSize int64
	Logger       *logrus.Logger
}

func (sc *Config) checkConfig() error {
	if sc.InMemory {
		return nil
	}

	if sc.Path == "" {
		return errors.New("no store path provided in configuration")
	}

	if err := os.MkdirAll(sc.Path, 0o750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	info, err := os.Stat(sc.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("store path is not a directory")
	}

	if sc.MinimumFreeGB <= 0 {
		return nil
	}

	usage, err := disk.Usage(sc.Path)
	if err != nil {
		return fmt.Errorf("read disk usage: %w", err)
	}

	availableSpaceInGB := usage.Free / (1024 * 1024 * 1024)
	if availableSpaceInGB < uint64(sc.MinimumFreeGB) {
		return fmt.Errorf("not enough space available on disk: %d GB free, %d GB required",
			availableSpaceInGB, sc.MinimumFreeGB)
	}

	return nil
}
