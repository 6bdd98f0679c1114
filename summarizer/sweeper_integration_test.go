//go:build integration

package summarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavehub/weave/common"
)

func TestSweep_NamesDueThreadAndBumpsVersion(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.EnsureThread(ctx, "t-1", "u-1", time.Now()))

	history := &fakeHistoryProvider{messages: map[string][]Message{
		"t-1": {{Role: "user", Content: "what's the weather"}, {Role: "assistant", Content: "sunny"}},
	}}
	namer := &fakeNamer{result: NamingResult{Name: "Weather chat", Summary: "Discussing the weather."}}
	bumper := &fakeBumper{}

	sweeper := NewSweeper(store, history, namer, bumper, Config{BatchLimit: 5}, common.ServiceLogger("summarizer-test", "test"))

	named, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, named)
	assert.Equal(t, 1, bumper.calls)

	thread, err := store.GetThread(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Weather chat", thread.Name)
	assert.False(t, thread.NeedsNaming)
	assert.NotNil(t, thread.LastNamingAt)
}

func TestSweep_SkipsUserRenamedThreads(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.EnsureThread(ctx, "t-1", "u-1", time.Now()))
	require.NoError(t, store.MarkUserRenamed(ctx, "t-1", "My custom name"))

	namer := &fakeNamer{result: NamingResult{Name: "should not be used"}}
	sweeper := NewSweeper(store, &fakeHistoryProvider{}, namer, &fakeBumper{}, Config{BatchLimit: 5}, common.ServiceLogger("summarizer-test", "test"))

	named, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, named)

	thread, err := store.GetThread(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "My custom name", thread.Name)
}

func TestSweep_FailureMarksAttemptedButLeavesNeedsNaming(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.EnsureThread(ctx, "t-1", "u-1", time.Now()))

	namer := &fakeNamer{err: errors.New("model unavailable")}
	history := &fakeHistoryProvider{messages: map[string][]Message{"t-1": {{Role: "user", Content: "hi"}}}}
	sweeper := NewSweeper(store, history, namer, &fakeBumper{}, Config{BatchLimit: 5}, common.ServiceLogger("summarizer-test", "test"))

	named, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, named)

	thread, err := store.GetThread(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, thread.NeedsNaming, "a failed naming attempt must leave needs_naming set")
	assert.NotNil(t, thread.LastNamingAt, "a failed attempt still throttles retries via last_naming_at")
}

func TestSweep_RespectsMinInterval(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.EnsureThread(ctx, "t-1", "u-1", time.Now()))
	// The first attempt fails, which stamps last_naming_at but leaves
	// needs_naming set, so only MinInterval keeps the second sweep away.
	namer := &fakeNamer{result: NamingResult{Name: "n", Summary: "s"}, err: errors.New("model unavailable")}
	history := &fakeHistoryProvider{messages: map[string][]Message{"t-1": {{Role: "user", Content: "hi"}}}}
	sweeper := NewSweeper(store, history, namer, &fakeBumper{}, Config{BatchLimit: 5, MinInterval: time.Hour}, common.ServiceLogger("summarizer-test", "test"))

	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	namer.err = nil

	named, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, named, "second sweep within MinInterval must not re-pick the same thread")
}
