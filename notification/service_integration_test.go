//go:build integration

package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/eventbus"
	"github.com/weavehub/weave/permission"
)

// TestAccept_GraphFirstGuidance covers S1: accepting an assistant share
// without graph access must not grant anything and must leave (or create) a
// pending graph_share notification for the same graph instead.
func TestAccept_GraphFirstGuidance(t *testing.T) {
	db := setupTestDB(t)
	perms := permission.NewEngine(db)
	ctx := context.Background()

	recipient := auth.Actor{Type: auth.ActorUser, Identity: "u-recipient"}
	sender := auth.Actor{Type: auth.ActorUser, Identity: "u-sender"}

	svc := NewService(db, perms, fakeGraphResolver("graph-1"), eventbus.NoopPublisher{}, 0)

	n, err := svc.Create(ctx, sender, recipient.Identity, TypeAssistantShare, "assistant-1", permission.LevelViewer, "Assistant One", "")
	require.NoError(t, err)

	result, err := svc.Accept(ctx, recipient, n.ID)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.RequiresGraphFirst)
	assert.Equal(t, "accept_graph", result.NextAction)
	assert.NotEmpty(t, result.RelatedGraphNotificationID)

	ok, err := perms.CanAccess(ctx, recipient, permission.TargetAssistant, "assistant-1", permission.LevelViewer)
	require.NoError(t, err)
	assert.False(t, ok, "assistant share must not be granted before graph access exists")

	var reloaded Notification
	require.NoError(t, db.First(&reloaded, "id = ?", n.ID).Error)
	assert.Equal(t, StatusPending, reloaded.Status, "assistant share notification stays pending")

	var related Notification
	require.NoError(t, db.First(&related, "id = ?", result.RelatedGraphNotificationID).Error)
	assert.Equal(t, TypeGraphShare, related.Type)
	assert.Equal(t, "graph-1", related.ResourceID)
	assert.Equal(t, StatusPending, related.Status)

	// Re-accepting the same assistant share before the graph is accepted
	// reuses the same pending graph_share rather than creating a duplicate.
	result2, err := svc.Accept(ctx, recipient, n.ID)
	require.NoError(t, err)
	assert.Equal(t, result.RelatedGraphNotificationID, result2.RelatedGraphNotificationID)
}

// TestAccept_GrantsOnSuccess covers property 4: a successful accept is
// always paired, in the same call, with the corresponding permission grant.
func TestAccept_GrantsOnSuccess(t *testing.T) {
	db := setupTestDB(t)
	perms := permission.NewEngine(db)
	ctx := context.Background()

	recipient := auth.Actor{Type: auth.ActorUser, Identity: "u-recipient"}
	sender := auth.Actor{Type: auth.ActorUser, Identity: "u-sender"}

	svc := NewService(db, perms, nil, eventbus.NoopPublisher{}, 0)

	n, err := svc.Create(ctx, sender, recipient.Identity, TypeCollectionShare, "col-1", permission.LevelViewer, "Collection One", "")
	require.NoError(t, err)

	result, err := svc.Accept(ctx, recipient, n.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.PermissionGranted)
	assert.Equal(t, ActionGranted, result.Action)

	ok, err := perms.CanAccess(ctx, recipient, permission.TargetCollection, "col-1", permission.LevelViewer)
	require.NoError(t, err)
	assert.True(t, ok)

	var reloaded Notification
	require.NoError(t, db.First(&reloaded, "id = ?", n.ID).Error)
	assert.Equal(t, StatusAccepted, reloaded.Status)

	// Accepting again finds no pending notification left to act on.
	_, err = svc.Accept(ctx, recipient, n.ID)
	assert.Error(t, err)
}
