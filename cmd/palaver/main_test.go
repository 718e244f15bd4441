package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandLeavesErrorPrintingToMain(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs([]string{"no-such-command"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-command")

	// cobra.CheckErr prints the error, cobra itself stays quiet
	assert.Empty(t, stderr.String())
	assert.Empty(t, stdout.String())
}

func TestHelpTopicsAreEmbedded(t *testing.T) {
	entries, err := docFS.ReadDir("doc")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
