package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harpclock/config"
)

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harpclock.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  port: /dev/ttyA\n  baud: 9600\nsync:\n  port: /dev/ttyB\n"), 0o644))

	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-c", path, "--output-baud", "921600", "--lead-us", "500"}))

	var opts options
	opts.configFile = path
	opts.outputBaud = 921600
	opts.leadUS = 500
	cfg, err := loadConfig(cmd, &opts)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyA", cfg.Output.Port)
	assert.Equal(t, 921600, cfg.Output.Baud)
	assert.Equal(t, "/dev/ttyB", cfg.Sync.Port)
	assert.Equal(t, uint64(500), cfg.Sync.LeadUS)
}

func TestInvalidFlagRejected(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--lead-us", "2000000"}))

	_, err := loadConfig(cmd, &options{leadUS: 2000000})
	assert.ErrorIs(t, err, config.ErrBadLead)
}

func TestPrintConfig(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"print-config", "--sync-baud", "100000"})
	require.NoError(t, cmd.Execute())

	cfg, err := config.Load(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestRunRequiresOutput(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--log-level", "error"})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
