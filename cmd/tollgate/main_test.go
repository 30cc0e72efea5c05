package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/harunnryd/tollgate/internal/config"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvDisabled, "")
	t.Setenv("TOLLGATE_STORE__DIR", filepath.Join(t.TempDir(), "state"))

	loaded, err := config.Load(nil)
	require.NoError(t, err)
	return loaded
}

// useConfig installs c as the package config for the duration of the test.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func newTestCommand(out *bytes.Buffer, setup func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	if setup != nil {
		setup(cmd)
	}
	return cmd
}
