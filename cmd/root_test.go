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

	expected := []string{
		"ingest", "dataset", "features", "train", "predict", "accuracy",
		"model", "retrain", "worker", "schedule", "serve", "runs",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "crash-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("yes")
	require.NotNil(t, flag, "ingest command should have --yes flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestPredictCommand_Flags(t *testing.T) {
	flag := predictCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "predict command should have --file flag")
}

func TestRetrainCommand_Flags(t *testing.T) {
	require.NotNil(t, retrainCmd.Flags().Lookup("force"))
	require.NotNil(t, retrainCmd.Flags().Lookup("threshold"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "8000", flag.DefValue)
}

func TestModelCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range modelCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"info", "list", "backup", "restore"} {
		assert.True(t, names[name], "expected model subcommand %q not found", name)
	}
}

func TestScheduleCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range scheduleCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"create", "describe", "delete", "trigger"} {
		assert.True(t, names[name], "expected schedule subcommand %q not found", name)
	}
}
