//go:build integration

package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/auth"
)

type fakeUserLister struct{ ids []string }

func (f fakeUserLister) ListAllUserIDs(ctx context.Context) ([]string, error) { return f.ids, nil }

func TestEngine_GrantRevoke_LastOwnerGuard(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	owner := auth.Actor{Type: auth.ActorUser, Identity: "u-owner", Role: auth.RoleUser}
	_, err := engine.Grant(ctx, auth.Actor{Type: auth.ActorService}, TargetCollection, "col-1", "u-owner", LevelOwner)
	require.NoError(t, err)

	err = engine.Revoke(ctx, owner, TargetCollection, "col-1", "u-owner")
	require.Error(t, err)
	assert.Equal(t, apperr.LastOwner, apperr.KindOf(err))
}

func TestMaterializer_CreateFanoutAndRevoke(t *testing.T) {
	db := setupTestDB(t)
	engine := NewEngine(db)
	ctx := context.Background()

	users := fakeUserLister{ids: []string{"u1", "u2"}}
	mat := NewMaterializer(db, engine, users)

	admin := auth.Actor{Type: auth.ActorUser, Identity: "admin", Role: auth.RoleDevAdmin}

	granted, err := mat.Create(ctx, admin, TargetCollection, "col-pub", LevelViewer, "")
	require.NoError(t, err)
	assert.Equal(t, 2, granted)

	level, found, err := engine.LevelOf(ctx, "u1", TargetCollection, "col-pub")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, LevelViewer, level)

	require.NoError(t, mat.Revoke(ctx, admin, TargetCollection, "col-pub", RevokeFutureOnly))

	_, found, err = engine.LevelOf(ctx, "u1", TargetCollection, "col-pub")
	require.NoError(t, err)
	assert.True(t, found, "future_only revoke leaves existing grants in place")

	require.NoError(t, mat.Revoke(ctx, admin, TargetCollection, "col-pub", RevokeAll))
	_, found, err = engine.LevelOf(ctx, "u1", TargetCollection, "col-pub")
	require.NoError(t, err)
	assert.False(t, found, "revoke_all removes system:public grants")
}
