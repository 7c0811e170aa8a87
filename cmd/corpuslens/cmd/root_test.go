package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "index", "search", "health", "watch", "version"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}

func TestNewRootCmd_HasDebugFlag(t *testing.T) {
	root := NewRootCmd()

	flag := root.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestNewRootCmd_NoArgsPrintsHelpWithoutError(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{})

	err := root.Execute()

	assert.NoError(t, err)
}

func TestServeCmd_HasConfigDirFlag(t *testing.T) {
	cmd := newServeCmd()

	flag := cmd.Flags().Lookup("config-dir")
	require.NotNil(t, flag)
	assert.Equal(t, ".", flag.DefValue)
}

func TestIndexCmd_AcceptsAtMostOnePositionalArg(t *testing.T) {
	cmd := newIndexCmd()

	assert.NoError(t, cmd.Args(cmd, []string{"."}))
	assert.Error(t, cmd.Args(cmd, []string{".", "extra"}))
}

func TestSearchCmd_HasTopKFlag(t *testing.T) {
	cmd := newSearchCmd()

	flag := cmd.Flags().Lookup("top-k")
	require.NotNil(t, flag)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	cmd := newSearchCmd()

	assert.Error(t, cmd.Args(cmd, []string{}))
	assert.NoError(t, cmd.Args(cmd, []string{"query"}))
	assert.Error(t, cmd.Args(cmd, []string{"query", "extra"}))
}

func TestWatchCmd_AcceptsAtMostOnePositionalArg(t *testing.T) {
	cmd := newWatchCmd()

	assert.NoError(t, cmd.Args(cmd, []string{"."}))
	assert.Error(t, cmd.Args(cmd, []string{".", "extra"}))
}

func TestVersionCmd_ShortFlagPrintsBareVersion(t *testing.T) {
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())

	assert.NotContains(t, buf.String(), "commit")
}
