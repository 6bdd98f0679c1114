//go:build integration

package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavehub/weave/common"
	weavedb "github.com/weavehub/weave/db"
)

func TestSyncAssistant_CreatesThenSkipsUnchanged(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{
		ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1,
		Config: map[string]interface{}{"k": "v"},
	}

	stats, err := svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.New)

	var row Assistant
	require.NoError(t, db.First(&row, "id = ?", "a-1").Error)
	assert.Equal(t, "bot", row.Name)

	var graph Graph
	require.NoError(t, db.First(&graph, "id = ?", "g-1").Error)
	assert.True(t, graph.Active)

	cs, err := svc.GetCacheState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cs.AssistantsVersion)

	stats, err = svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)

	cs, err = svc.GetCacheState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cs.AssistantsVersion, "unchanged hash must not bump the version counter")
}

func TestSyncAssistant_UpdatesOnHashChange(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1}
	_, err := svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)

	engine.assistants["a-1"].Name = "bot-renamed"
	stats, err := svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	var row Assistant
	require.NoError(t, db.First(&row, "id = ?", "a-1").Error)
	assert.Equal(t, "bot-renamed", row.Name)
}

func TestSyncFull_MarksInactiveGraphs(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	require.NoError(t, db.Create(&Graph{ID: "g-stale", Active: true}).Error)

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1}
	_, err := svc.SyncFull(ctx, 50)
	require.NoError(t, err)

	var stale Graph
	require.NoError(t, db.First(&stale, "id = ?", "g-stale").Error)
	assert.False(t, stale.Active, "graph with no recently-seen assistants becomes inactive")

	var fresh Graph
	require.NoError(t, db.First(&fresh, "id = ?", "g-1").Error)
	assert.True(t, fresh.Active)
}

func TestVersionHistory_AutoSavesCurrentVersion(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 5}

	history, err := svc.VersionHistory(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 5, history[0].Version)

	history, err = svc.VersionHistory(ctx, "a-1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "repeated observation of the same version must not duplicate it")
}

func TestRestore_CreatesNewVersionAndSyncs(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{
		ID: "a-1", GraphID: "g-1", Name: "v1-name", Version: 1,
		Config: map[string]interface{}{"x": 1},
	}
	_, err := svc.VersionHistory(ctx, "a-1")
	require.NoError(t, err)

	engine.ApplyAssistantUpdate(ctx, "a-1", "v2-name", "", map[string]interface{}{"x": 2}, nil)
	_, err = svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)

	snapshot, err := svc.Restore(ctx, "a-1", 1, "")
	require.NoError(t, err)
	assert.Equal(t, "v1-name", snapshot.Name)
	assert.Equal(t, "Restored from version 1", snapshot.CommitMessage)
	assert.NotEqual(t, 1, snapshot.Version, "restore must create a new version, not overwrite the target")

	assert.Equal(t, "v1-name", engine.assistants["a-1"].Name, "restore applies the target snapshot upstream")

	var row Assistant
	require.NoError(t, db.First(&row, "id = ?", "a-1").Error)
	assert.Equal(t, "v1-name", row.Name, "restore targeted-syncs the mirror row")
}

func TestRestore_UnknownVersionIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1}

	_, err := svc.Restore(ctx, "a-1", 99, "")
	require.Error(t, err)
}

func TestCleanupStaleMirrors_RespectsGraceHorizon(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	svc := NewService(db, engine, newFakeSchemaStore(), nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	require.NoError(t, db.Create(&Assistant{ID: "old", GraphID: "g-1", LastSeenAt: oldTime()}).Error)
	require.NoError(t, db.Create(&Assistant{ID: "recent", GraphID: "g-1", LastSeenAt: recentTime()}).Error)

	result, err := svc.CleanupStaleMirrors(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.AssistantsDeleted)

	var remaining []Assistant
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].ID)
}

func TestSyncAssistant_SavesSchemasOnFirstSyncThenSkipsUnchanged(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	schemas := newFakeSchemaStore()
	svc := NewService(db, engine, schemas, nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1}
	engine.schemas["a-1"] = &UpstreamSchemas{InputSchema: map[string]interface{}{"type": "object"}}

	stats, err := svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SchemaUpdates)

	doc, err := svc.GetSchemas(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, map[string]interface{}{"type": "object"}, doc.InputSchema)

	stats, err = svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SchemaUpdates, "unchanged schemas must not bump schemas_version again")
}

func TestSyncAssistant_WritesGraphMembershipEdge(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	graphRepo := newFakeGraphRepo()
	svc := NewService(db, engine, newFakeSchemaStore(), graphRepo, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1}
	_, err := svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)

	ids, err := svc.ListAssistantIDsByGraph(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1"}, ids, "ListAssistantIDsByGraph must answer from the graph membership store when configured")
}

func TestCleanupStaleMirrors_RemovesGraphMembershipNode(t *testing.T) {
	db := setupTestDB(t)
	engine := newFakeEngineClient()
	graphRepo := newFakeGraphRepo()
	svc := NewService(db, engine, newFakeSchemaStore(), graphRepo, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	engine.assistants["a-1"] = &UpstreamAssistant{ID: "a-1", GraphID: "g-1", Name: "bot", Version: 1}
	_, err := svc.SyncAssistant(ctx, "a-1")
	require.NoError(t, err)
	require.NoError(t, db.Model(&Assistant{}).Where("id = ?", "a-1").Update("last_seen_at", oldTime()).Error)

	_, err = svc.CleanupStaleMirrors(ctx, 7)
	require.NoError(t, err)

	ids, err := svc.ListAssistantIDsByGraph(ctx, "g-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCleanupStaleMirrors_DeletesOrphanSchemaDocuments(t *testing.T) {
	gdb := setupTestDB(t)
	engine := newFakeEngineClient()
	schemas := newFakeSchemaStore()
	svc := NewService(gdb, engine, schemas, nil, common.ServiceLogger("mirror-test", "test"))
	ctx := context.Background()

	require.NoError(t, gdb.Create(&Assistant{ID: "old", GraphID: "g-1", LastSeenAt: oldTime()}).Error)
	require.NoError(t, schemas.Save(ctx, weavedb.AssistantSchemas{AssistantID: "old", InputSchema: map[string]interface{}{"a": 1}}))

	result, err := svc.CleanupStaleMirrors(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SchemasDeleted)

	doc, err := svc.GetSchemas(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, doc)
}
