package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weavehub/weave/mirror"
)

func TestPrintStats(t *testing.T) {
	stats := mirror.SyncStats{
		New:           3,
		Updated:       1,
		Unchanged:     5,
		SchemaUpdates: 2,
		Errors:        []string{"assistant a1: upstream 500"},
	}

	stdout, stderr := captureOutput(t, func() {
		printStats(stats)
	})

	assert.Contains(t, stdout, "new=3 updated=1 unchanged=5 schema_updates=2 errors=1")
	assert.Contains(t, stderr, "error: assistant a1: upstream 500")
}

func TestPrintStatsNoErrors(t *testing.T) {
	stdout, stderr := captureOutput(t, func() {
		printStats(mirror.SyncStats{New: 1})
	})

	assert.Contains(t, stdout, "new=1 updated=0 unchanged=0 schema_updates=0 errors=0")
	assert.Empty(t, stderr)
}

func TestRootCommandTree(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, names, []string{
		"sync-incremental", "sync-full", "sync-assistant", "sync-graph", "cleanup", "cache-state",
	})
}

func TestSyncLimitFlagDefault(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("limit")
	assert.NotNil(t, flag)
	assert.Equal(t, "200", flag.DefValue)
}

func TestCleanupGraceDaysFlagDefault(t *testing.T) {
	flag := cleanupCmd.Flags().Lookup("grace-days")
	assert.NotNil(t, flag)
	assert.Equal(t, "30", flag.DefValue)
}

// captureOutput redirects os.Stdout/os.Stderr for the duration of fn, since
// printStats writes directly to them rather than through an injectable writer.
func captureOutput(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()

	origOut, origErr := os.Stdout, os.Stderr
	outR, outW, err := os.Pipe()
	assert.NoError(t, err)
	errR, errW, err := os.Pipe()
	assert.NoError(t, err)

	os.Stdout, os.Stderr = outW, errW
	fn()
	os.Stdout, os.Stderr = origOut, origErr

	outW.Close()
	errW.Close()

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(outR)
	errBuf.ReadFrom(errR)

	return outBuf.String(), errBuf.String()
}
