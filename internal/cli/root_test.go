package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := New(&out, &errOut).RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateThenStats(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "generate", "--path", dir, "--nodes", "20", "--seed", "3", "--steps", "--threshold", "7")
	require.NoError(t, err)

	out, err := run(t, "stats", "--path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Nodes:        22")
	assert.Contains(t, out, "Edges:        21")
	assert.Contains(t, out, "Step:         20")
}

func TestGenerateClearStartsOver(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "generate", "-p", dir, "-n", "5", "--seed", "1")
	require.NoError(t, err)
	_, err = run(t, "generate", "-p", dir, "-n", "3", "--seed", "1", "--clear", "--mode", "strict")
	require.NoError(t, err)

	out, err := run(t, "stats", "-p", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Nodes:        5")
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "graphsink.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("path: "+dir+"\nconsistencyMode: autocreate\n"), 0o600))

	_, err := run(t, "generate", "--config", cfg, "-n", "4", "--seed", "9")
	require.NoError(t, err)

	out, err := run(t, "stats", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Nodes:        6")

	_, err = run(t, "stats", "-c", cfg, "--mode", "bogus")
	assert.Error(t, err)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	file := filepath.Join(t.TempDir(), "graph.bak")

	_, err := run(t, "generate", "-p", src, "-n", "10", "--seed", "5")
	require.NoError(t, err)

	out, err := run(t, "backup", "-p", src, "-o", file)
	require.NoError(t, err)
	assert.Contains(t, out, "backup written to "+file)

	_, err = run(t, "restore", "-p", dst, "-i", file)
	require.NoError(t, err)
	_, err = run(t, "compact", "-p", dst)
	require.NoError(t, err)

	out, err = run(t, "stats", "-p", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Nodes:        12")
	assert.Contains(t, out, "Edges:        11")
}

func TestMissingPathFails(t *testing.T) {
	_, err := run(t, "stats")
	assert.ErrorContains(t, err, "no store path")
}
