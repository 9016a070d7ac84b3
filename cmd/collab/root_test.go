package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootWithoutSubcommandServes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed\n"), 0o644))

	rootCmd.SetArgs([]string{"--config", dir})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	// no subcommand given, so the config error comes from serve
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
