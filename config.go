package graphsink

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/i5heu/ouroboros-graph/internal/consistency"
	"github.com/i5heu/ouroboros-graph/internal/queue"
	"github.com/i5heu/ouroboros-graph/pkg/stream"
)

// ConsistencyMode selects how edges with missing endpoints are handled.
type ConsistencyMode = consistency.Mode

const (
	Lenient    = consistency.Lenient
	Strict     = consistency.Strict
	AutoCreate = consistency.AutoCreate
)

// Warning is recorded for every edge dropped in Lenient mode.
type Warning = consistency.Warning

// DefaultFlushThreshold is the queue length above which a flush runs.
const DefaultFlushThreshold = queue.DefaultThreshold

// Config configures a Container.
type Config struct {
	// Path is the store directory used by Open. Connect takes its own path.
	Path string
	// InMemory runs the store without touching disk. Path is ignored.
	InMemory bool
	// FlushThreshold defaults to DefaultFlushThreshold.
	FlushThreshold  int
	ConsistencyMode ConsistencyMode
	// MinimumFreeGB refuses to open a store on a nearly full disk. 0 disables the check.
	MinimumFreeGB int
	SyncWrites    bool
	// Logger is optional. If nil, a stderr logger at Info level is used.
	Logger *logrus.Logger
	// Observers receive every notification after it has been queued.
	Observers []stream.Sink
}

func defaultLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	return log
}

// FileConfig is the YAML form of Config.
type FileConfig struct {
	Path            string `yaml:"path"`
	InMemory        bool   `yaml:"inMemory"`
	FlushThreshold  int    `yaml:"flushThreshold"`
	ConsistencyMode string `yaml:"consistencyMode"`
	MinimumFreeGB   int    `yaml:"minimumFreeGB"`
	SyncWrites      bool   `yaml:"syncWrites"`
	LogLevel        string `yaml:"logLevel"`
	MetricsAddr     string `yaml:"metricsAddr"`
}

// LoadConfig reads a YAML config file and fills in defaults.
func LoadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.FlushThreshold <= 0 {
		fc.FlushThreshold = DefaultFlushThreshold
	}
	if fc.LogLevel == "" {
		fc.LogLevel = logrus.InfoLevel.String()
	}

	if _, err := consistency.ParseMode(fc.ConsistencyMode); err != nil {
		return FileConfig{}, err
	}
	if _, err := logrus.ParseLevel(fc.LogLevel); err != nil {
		return FileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}

	return fc, nil
}

// Config converts the file form, building a logger at the configured level.
func (fc FileConfig) Config() (Config, error) {
	mode, err := consistency.ParseMode(fc.ConsistencyMode)
	if err != nil {
		return Config{}, err
	}

	log := defaultLogger()
	if fc.LogLevel != "" {
		level, err := logrus.ParseLevel(fc.LogLevel)
		if err != nil {
			return Config{}, err
		}
		log.SetLevel(level)
	}

	return Config{
		Path:            fc.Path,
		InMemory:        fc.InMemory,
		FlushThreshold:  fc.FlushThreshold,
		ConsistencyMode: mode,
		MinimumFreeGB:   fc.MinimumFreeGB,
		SyncWrites:      fc.SyncWrites,
		Logger:          log,
	}, nil
}

// ParseConsistencyMode accepts "strict", "autocreate" and "lenient".
func ParseConsistencyMode(s string) (ConsistencyMode, error) {
	return consistency.ParseMode(s)
}
