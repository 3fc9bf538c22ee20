package places

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/owners"
	"github.com/graffic/roombot/internal/room"
	"github.com/graffic/roombot/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = room.User{ID: "u-alice", Username: "alice"}
	bob   = room.User{ID: "u-bob", Username: "bob"}
)

type fixture struct {
	fake   *testutils.FakeRoom
	bot    *bot.Bot
	store  *Store
	module *Module
	clock  time.Time
}

func setup(t *testing.T, config Config) *fixture {
	t.Helper()

	db := testutils.NewTestDB(t, &Place{}, &owners.Owner{})
	ownerStore := owners.NewStore(db.DB)
	require.NoError(t, ownerStore.Seed(context.Background(), []string{alice.ID}))

	fake := testutils.NewFakeRoom(
		room.RoomUser{User: alice, Position: room.Position{X: 4, Y: 0, Z: 7, Facing: "BackLeft"}},
		room.RoomUser{User: bob, Position: room.Position{X: 1, Y: 0, Z: 1}},
	)
	logger := testutils.DiscardLogger()
	b := bot.New(fake, bot.NewRegistry(bot.CollisionWarn, logger), "!", logger)

	f := &fixture{
		fake:  fake,
		bot:   b,
		store: NewStore(db.DB),
		clock: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.module = NewModule(f.store, ownerStore.Only(), config, logger)
	f.module.now = func() time.Time { return f.clock }

	report := bot.NewLoader(b.Registrar(), logger).Load(f.module)
	require.NoError(t, report.Err())
	return f
}

func (f *fixture) run(t *testing.T, name string, user room.User, args ...string) {
	t.Helper()

	cmd, ok := f.bot.Registry().Resolve(name)
	require.True(t, ok, "command %s not registered", name)
	require.NoError(t, cmd.Handler(context.Background(), f.bot, user, args))
}

func TestGoAdd_SavesCurrentPosition(t *testing.T) {
	f := setup(t, Config{})

	f.run(t, "goadd", alice, "Dance", "Floor")

	place, found, err := f.store.Get(context.Background(), "dance floor")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, room.Position{X: 4, Y: 0, Z: 7, Facing: "BackLeft"}, place.Position())
	assert.Equal(t, []string{"Added new place: dance floor at (4, 0, 7) facing BackLeft"}, f.fake.WhispersTo(alice.ID))
}

func TestGoAdd_Usage(t *testing.T) {
	f := setup(t, Config{})

	f.run(t, "goadd", alice)

	assert.Equal(t, []string{"Please specify a name for the place. Usage: !goadd [place_name]"}, f.fake.WhispersTo(alice.ID))
}

func TestCommands_RequireOwner(t *testing.T) {
	f := setup(t, Config{})

	for _, name := range []string{"go", "goadd", "gorem", "places"} {
		f.run(t, name, bob, "stage")
	}

	assert.Equal(t, []string{
		owners.OnlyOwnersMessage,
		owners.OnlyOwnersMessage,
		owners.OnlyOwnersMessage,
		owners.OnlyOwnersMessage,
	}, f.fake.WhispersTo(bob.ID))
	assert.Empty(t, f.fake.Teleports())
}

func TestGo_TeleportsToPlace(t *testing.T) {
	f := setup(t, Config{})
	_, err := f.store.Save(context.Background(), "stage", room.Position{X: 10, Y: 1, Z: 20, Facing: "FrontLeft"}, alice.ID)
	require.NoError(t, err)

	f.run(t, "go", alice, "STAGE")

	assert.Equal(t, []testutils.Teleport{{
		UserID:   alice.ID,
		Position: room.Position{X: 10, Y: 1, Z: 20, Facing: "FrontLeft"},
	}}, f.fake.Teleports())
	assert.Equal(t, []string{"You've been teleported to stage!"}, f.fake.WhispersTo(alice.ID))
}

func TestGo_UnknownPlace(t *testing.T) {
	f := setup(t, Config{})

	f.run(t, "go", alice, "moon")

	assert.Empty(t, f.fake.Teleports())
	assert.Equal(t, []string{"Unknown place 'moon'. Use !places to see available locations."}, f.fake.WhispersTo(alice.ID))
}

func TestGo_Cooldown(t *testing.T) {
	f := setup(t, Config{Cooldown: 5 * time.Second})
	_, err := f.store.Save(context.Background(), "stage", room.Position{}, alice.ID)
	require.NoError(t, err)

	f.run(t, "go", alice, "stage")
	f.clock = f.clock.Add(2 * time.Second)
	f.run(t, "go", alice, "stage")
	f.clock = f.clock.Add(3 * time.Second)
	f.run(t, "go", alice, "stage")

	assert.Len(t, f.fake.Teleports(), 2)
	assert.Equal(t, []string{
		"You've been teleported to stage!",
		"Please wait 3 seconds before teleporting again!",
		"You've been teleported to stage!",
	}, f.fake.WhispersTo(alice.ID))
}

func TestGo_RateLimit(t *testing.T) {
	f := setup(t, Config{PerMinute: 2})
	_, err := f.store.Save(context.Background(), "stage", room.Position{}, alice.ID)
	require.NoError(t, err)

	for range 3 {
		f.run(t, "go", alice, "stage")
	}

	assert.Len(t, f.fake.Teleports(), 2)
	whispers := f.fake.WhispersTo(alice.ID)
	require.Len(t, whispers, 3)
	assert.Equal(t, "Too many requests. Please wait a moment before trying again.", whispers[2])

	// The bucket refills with time
	f.clock = f.clock.Add(time.Minute)
	f.run(t, "go", alice, "stage")
	assert.Len(t, f.fake.Teleports(), 3)
}

func TestSweep_ForgetsIdleUsers(t *testing.T) {
	f := setup(t, Config{Cooldown: 5 * time.Second, PerMinute: 2})
	_, err := f.store.Save(context.Background(), "stage", room.Position{}, alice.ID)
	require.NoError(t, err)

	f.run(t, "go", alice, "stage")
	trips, limiters := f.module.tracked()
	assert.Equal(t, 1, trips)
	assert.Equal(t, 1, limiters)

	// Still cooling down and the bucket is not full yet
	f.clock = f.clock.Add(2 * time.Second)
	assert.Zero(t, f.module.Sweep())

	f.clock = f.clock.Add(time.Minute)
	assert.Equal(t, 2, f.module.Sweep())
	trips, limiters = f.module.tracked()
	assert.Zero(t, trips)
	assert.Zero(t, limiters)

	// A forgotten user starts over with a fresh budget
	f.run(t, "go", alice, "stage")
	assert.Len(t, f.fake.Teleports(), 2)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := setup(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.module.Run(ctx), context.Canceled)
}

func TestGoRem(t *testing.T) {
	f := setup(t, Config{})
	_, err := f.store.Save(context.Background(), "stage", room.Position{}, alice.ID)
	require.NoError(t, err)

	f.run(t, "gorem", alice, "stage")
	f.run(t, "gorem", alice, "stage")

	assert.Equal(t, []string{
		"Removed place: stage",
		"Place 'stage' does not exist.",
	}, f.fake.WhispersTo(alice.ID))
}

func TestPlaces_Paginates(t *testing.T) {
	f := setup(t, Config{})
	for i := range 12 {
		_, err := f.store.Save(context.Background(), fmt.Sprintf("p%02d", i), room.Position{}, alice.ID)
		require.NoError(t, err)
	}

	f.run(t, "places", alice)

	assert.Equal(t, []string{
		"Available places (showing 10 at a time):",
		"Page 1: p00, p01, p02, p03, p04, p05, p06, p07, p08, p09",
		"Page 2: p10, p11",
	}, f.fake.WhispersTo(alice.ID))
}

func TestPlaces_Empty(t *testing.T) {
	f := setup(t, Config{})

	// go without a place lists them
	f.run(t, "go", alice)

	assert.Equal(t, []string{"No places available. Contact a moderator."}, f.fake.WhispersTo(alice.ID))
}

func TestContribute_RequiresDependencies(t *testing.T) {
	logger := testutils.DiscardLogger()
	registry := bot.NewRegistry(bot.CollisionWarn, logger)

	report := bot.NewLoader(registry, logger).Load(NewModule(nil, nil, Config{}, logger))

	require.Len(t, report.Failed, 1)
	assert.Equal(t, 0, registry.Len())
}
