package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"github.com/graffic/roombot/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsBurstPerUser(t *testing.T) {
	limiter := NewRateLimiter(1, 2, testutils.DiscardLogger())

	assert.True(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"))

	// Buckets are per user
	assert.True(t, limiter.Allow("bob"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0, testutils.DiscardLogger())

	for range 100 {
		require.True(t, limiter.Allow("alice"))
	}
}

func TestRateLimiter_MiddlewareWhispersWhenLimited(t *testing.T) {
	fake := testutils.NewFakeRoom()
	logger := testutils.DiscardLogger()
	b := bot.New(fake, bot.NewRegistry(bot.CollisionWarn, logger), "!", logger)
	limiter := NewRateLimiter(1, 1, logger)

	calls := 0
	handler := limiter.Middleware()(func(context.Context, *bot.Bot, room.User, []string) error {
		calls++
		return nil
	})
	alice := room.User{ID: "u-alice", Username: "alice"}

	require.NoError(t, handler(context.Background(), b, alice, nil))
	require.NoError(t, handler(context.Background(), b, alice, nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{SlowDownMessage}, fake.WhispersTo("u-alice"))
}

func TestRateLimiter_SweepForgetsRefilledUsers(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 2, testutils.DiscardLogger())
	limiter.now = func() time.Time { return clock }

	require.True(t, limiter.Allow("alice"))
	require.True(t, limiter.Allow("bob"))
	require.True(t, limiter.Allow("bob"))
	assert.Equal(t, 2, limiter.Len())

	clock = clock.Add(30 * time.Second)
	assert.Zero(t, limiter.Sweep())

	// alice needed one token back, bob needs two
	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 1, limiter.Sweep())
	assert.Equal(t, 1, limiter.Len())

	clock = clock.Add(time.Minute)
	assert.Equal(t, 1, limiter.Sweep())
	assert.Zero(t, limiter.Len())
}

func TestRateLimiter_SweepDisabledLimiter(t *testing.T) {
	limiter := NewRateLimiter(0, 0, testutils.DiscardLogger())
	limiter.Allow("alice")

	assert.Equal(t, 1, limiter.Sweep())
	assert.Zero(t, limiter.Len())
}

func TestRateLimiter_StartStopsOnCancel(t *testing.T) {
	limiter := NewRateLimiter(1, 1, testutils.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, limiter.Start(ctx), context.Canceled)
}

func TestGate_IgnoredUserCannotTriggerUnknownReply(t *testing.T) {
	fake := testutils.NewFakeRoom()
	logger := testutils.DiscardLogger()
	b := bot.New(fake, bot.NewRegistry(bot.CollisionWarn, logger), "!", logger)
	d := bot.NewDispatcher(fake.Messages(), b, bot.DispatcherOptions{
		Prefix:       "!",
		UnknownReply: "Unknown command {command}",
	}, logger)
	d.Gate(
		UserFilter([]string{"troll"}, logger),
		NewRateLimiter(1, 1, logger).Middleware(),
	)

	troll := room.User{ID: "u-troll", Username: "troll"}
	alice := room.User{ID: "u-alice", Username: "alice"}
	for range 5 {
		d.Dispatch(context.Background(), room.ChatMessage{User: troll, Text: "!spam"})
	}
	d.Dispatch(context.Background(), room.ChatMessage{User: alice, Text: "!spam"})
	d.Dispatch(context.Background(), room.ChatMessage{User: alice, Text: "!spam"})
	d.Wait()

	assert.Equal(t, []string{"Unknown command spam"}, fake.Chats())
	assert.Equal(t, []string{SlowDownMessage}, fake.WhispersTo(alice.ID))
	assert.Empty(t, fake.WhispersTo(troll.ID))
}
