package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "analyze", "place", "pacing", "validate", "health", "migrate", "import-partners"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "maxclaim", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPlaceCommand_Flags(t *testing.T) {
	for _, name := range []string{"state", "region", "trade", "max", "mode"} {
		assert.NotNil(t, placeCmd.Flags().Lookup(name), name)
	}
}

func TestValidateCommand_Flags(t *testing.T) {
	for _, name := range []string{"weights", "state", "trials", "iterations", "slots", "seed", "upload"} {
		assert.NotNil(t, validateCmd.Flags().Lookup(name), name)
	}
}

func TestImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"file", "demand", "sheet", "dry-run"} {
		assert.NotNil(t, importCmd.Flags().Lookup(name), name)
	}
}

func TestParseWeights(t *testing.T) {
	got, err := parseWeights(" premium=2.4, standard=1.2,free=0 ,")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "premium", got[0].ID)
	assert.InDelta(t, 2.4, got[0].Weight, 1e-9)
	assert.Equal(t, "free", got[2].ID)

	for _, bad := range []string{"", "premium", "=2", "premium=abc", "premium=-1"} {
		_, err := parseWeights(bad)
		assert.Error(t, err, bad)
	}
}

func TestFirstPositive(t *testing.T) {
	assert.Equal(t, 5, firstPositive(0, 5, 7))
	assert.Equal(t, 3, firstPositive(3, 5))
	assert.Equal(t, 0, firstPositive(0, -1))
}
