package places

import (
	"context"
	"testing"

	"github.com/graffic/roombot/internal/room"
	"github.com/graffic/roombot/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGet(t *testing.T) {
	db := testutils.NewTestDB(t, &Place{})
	store := NewStore(db.DB)
	ctx := context.Background()

	_, err := store.Save(ctx, " Stage ", room.Position{X: 1, Y: 0.5, Z: 3}, "u-alice")
	require.NoError(t, err)

	place, found, err := store.Get(ctx, "STAGE")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "stage", place.Name)
	assert.Equal(t, room.Position{X: 1, Y: 0.5, Z: 3, Facing: room.DefaultFacing}, place.Position())
	assert.Equal(t, "u-alice", place.CreatedBy)
}

func TestStore_SaveOverwritesExistingName(t *testing.T) {
	db := testutils.NewTestDB(t, &Place{})
	store := NewStore(db.DB)
	ctx := context.Background()

	_, err := store.Save(ctx, "bar", room.Position{X: 1, Facing: "BackLeft"}, "u-alice")
	require.NoError(t, err)
	_, err = store.Save(ctx, "Bar", room.Position{X: 9, Facing: "FrontLeft"}, "u-bob")
	require.NoError(t, err)

	var count int64
	db.DB.Model(&Place{}).Count(&count)
	assert.Equal(t, int64(1), count)

	place, found, err := store.Get(ctx, "bar")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(9), place.X)
	assert.Equal(t, "FrontLeft", place.Facing)
	assert.Equal(t, "u-bob", place.CreatedBy)
}

func TestStore_GetMissing(t *testing.T) {
	db := testutils.NewTestDB(t, &Place{})
	store := NewStore(db.DB)

	place, found, err := store.Get(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, place)
}

func TestStore_DeleteAndNames(t *testing.T) {
	db := testutils.NewTestDB(t, &Place{})
	store := NewStore(db.DB)
	ctx := context.Background()

	for _, name := range []string{"pool", "bar", "stage"} {
		_, err := store.Save(ctx, name, room.Position{}, "u-alice")
		require.NoError(t, err)
	}

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "pool", "stage"}, names)

	deleted, err := store.Delete(ctx, "POOL")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "pool")
	require.NoError(t, err)
	assert.False(t, deleted)

	names, err = store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "stage"}, names)
}
