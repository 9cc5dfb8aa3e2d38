// Package testutil holds helpers shared by the graph store tests.
package testutil

import (
	"flag"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var RunLong = flag.Bool("long", false, "run long/heavy tests")

// RequireLong skips t unless the suite runs with -long.
func RequireLong(t testing.TB) {
	t.Helper()
	if !*RunLong {
		t.Skip("skipping long test (use -long to enable)")
	}
}

// Logger returns a logger that discards output and records every entry in
// the returned hook.
func Logger(level logrus.Level) (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(level)
	return log, hook
}

// Levels counts hook entries per level.
func Levels(hook *test.Hook) map[logrus.Level]int {
	counts := make(map[logrus.Level]int)
	for _, e := range hook.AllEntries() {
		counts[e.Level]++
	}
	return counts
}
