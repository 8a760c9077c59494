package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

func countActive(t *testing.T, env *testEnv) int64 {
	t.Helper()
	n, err := env.db.Collection(broadcastsCollection).CountDocuments(context.Background(), bson.M{"is_active": true})
	require.NoError(t, err)
	return n
}

func TestBroadcastService_SingleActive(t *testing.T) {
	env := newTestEnv(t, "testdb_broadcast_active")
	ctx := context.Background()
	admin := env.admin(t).UserID

	none, err := env.broadcasts.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := env.broadcasts.Create(ctx, admin, BroadcastInput{Message: "Service outage tonight"})
	require.NoError(t, err)
	assert.False(t, first.IsActive, "new broadcasts start inactive")
	second, err := env.broadcasts.Create(ctx, admin, BroadcastInput{Message: "Festival sale", Link: "/sale"})
	require.NoError(t, err)

	_, err = env.broadcasts.Activate(ctx, first.ID)
	require.NoError(t, err)
	_, err = env.broadcasts.Activate(ctx, second.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countActive(t, env))

	active, err := env.broadcasts.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
	assert.True(t, active.IsActive)

	list, err := env.broadcasts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, b := range list {
		assert.Equal(t, b.ID == second.ID, b.IsActive)
	}

	_, err = env.broadcasts.Activate(ctx, utils.NewSixID())
	assert.ErrorIs(t, err, ErrBroadcastNotFound)
	active, err = env.broadcasts.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID, "a failed activation keeps the current one")

	require.NoError(t, env.broadcasts.DeactivateAll(ctx))
	assert.Zero(t, countActive(t, env))
	active, err = env.broadcasts.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestBroadcastService_DeleteActive(t *testing.T) {
	env := newTestEnv(t, "testdb_broadcast_delete")
	ctx := context.Background()
	admin := env.admin(t).UserID

	keep, err := env.broadcasts.Create(ctx, admin, BroadcastInput{Message: "keep"})
	require.NoError(t, err)
	b, err := env.broadcasts.Create(ctx, admin, BroadcastInput{Message: "remove"})
	require.NoError(t, err)
	_, err = env.broadcasts.Activate(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, env.broadcasts.Delete(ctx, keep.ID))
	active, err := env.broadcasts.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active, "deleting an inactive broadcast leaves the active one alone")

	require.NoError(t, env.broadcasts.Delete(ctx, b.ID))
	active, err = env.broadcasts.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.ErrorIs(t, env.broadcasts.Delete(ctx, b.ID), ErrBroadcastNotFound)
}

func TestBroadcastService_SendToAll(t *testing.T) {
	env := newTestEnv(t, "testdb_broadcast_send")
	ctx := context.Background()
	admin := env.admin(t).UserID
	seller := env.seller(t).UserID

	b, err := env.broadcasts.Create(ctx, admin, BroadcastInput{Message: "New cars every Friday", Link: "/vehicles"})
	require.NoError(t, err)

	count, err := env.broadcasts.SendToAll(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	inbox, err := env.notifications.Inbox(ctx, seller)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "New cars every Friday", inbox[0].Message)

	_, err = env.broadcasts.SendToAll(ctx, utils.NewSixID())
	assert.ErrorIs(t, err, ErrBroadcastNotFound)

	_, err = env.broadcasts.Create(ctx, admin, BroadcastInput{})
	assert.Error(t, err)
}
