package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("db_driver: sqlite\ndb_path: %s\napp_env: test\nlog_level: error\n", filepath.Join(dir, "cli.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])
}

func TestMigrateThenSeed(t *testing.T) {
	cfgPath := writeConfig(t)

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "--config", cfgPath})
	require.NoError(t, root.Execute())

	root = newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"seed", "--config", cfgPath, "--seed", "3"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Seeded 3 alert configs")
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_driver: oracle\n"), 0o600))
	root := newRootCmd()
	root.SetArgs([]string{"migrate", "--config", path})
	assert.Error(t, root.Execute())
}
