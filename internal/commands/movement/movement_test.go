package movement

import (
	"context"
	"testing"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"github.com/graffic/roombot/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = room.User{ID: "u-alice", Username: "alice"}
	bob   = room.User{ID: "u-bob", Username: "Bob"}
	carol = room.User{ID: "u-carol", Username: "carol"}
)

func allowAll(next bot.Handler) bot.Handler {
	return next
}

func denyAll(next bot.Handler) bot.Handler {
	return func(ctx context.Context, b *bot.Bot, user room.User, _ []string) error {
		return b.Whisper(ctx, user.ID, "denied")
	}
}

func setup(t *testing.T, gate bot.Middleware) (*testutils.FakeRoom, *bot.Bot) {
	t.Helper()

	fake := testutils.NewFakeRoom(
		room.RoomUser{User: alice, Position: room.Position{X: 2, Y: 0, Z: 3, Facing: "BackRight"}},
		room.RoomUser{User: bob, Position: room.Position{X: 8, Y: 1, Z: 8, Facing: "FrontLeft"}},
		room.RoomUser{User: carol, Anchored: true},
	)
	logger := testutils.DiscardLogger()
	b := bot.New(fake, bot.NewRegistry(bot.CollisionWarn, logger), "!", logger)

	report := bot.NewLoader(b.Registrar(), logger).Load(NewModule(gate, logger))
	require.NoError(t, report.Err())
	return fake, b
}

func run(t *testing.T, b *bot.Bot, name string, user room.User, args ...string) {
	t.Helper()

	cmd, ok := b.Registry().Resolve(name)
	require.True(t, ok, "command %s not registered", name)
	require.NoError(t, cmd.Handler(context.Background(), b, user, args))
}

func TestMove(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantWalks []room.Position
		wantChat  string
	}{
		{
			name:      "x and z",
			args:      []string{"5", "10"},
			wantWalks: []room.Position{{X: 5, Y: 0, Z: 10, Facing: room.DefaultFacing}},
			wantChat:  "Moving to position: x=5, y=0, z=10",
		},
		{
			name:      "with height",
			args:      []string{"5", "10", "1.5"},
			wantWalks: []room.Position{{X: 5, Y: 1.5, Z: 10, Facing: room.DefaultFacing}},
			wantChat:  "Moving to position: x=5, y=1.5, z=10",
		},
		{
			name:     "missing z",
			args:     []string{"5"},
			wantChat: "Please provide x and z coordinates. Example: !move 5 10",
		},
		{
			name:     "not numbers",
			args:     []string{"left", "up"},
			wantChat: "Invalid coordinates. Please use numbers like: !move 5 10",
		},
		{
			name:     "not finite",
			args:     []string{"5", "10", "+Inf"},
			wantChat: "Invalid coordinates. Please use numbers like: !move 5 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, b := setup(t, allowAll)

			run(t, b, "move", alice, tt.args...)

			assert.Equal(t, tt.wantWalks, fake.Walks())
			assert.Equal(t, []string{tt.wantChat}, fake.Chats())
		})
	}
}

func TestSummon(t *testing.T) {
	for _, args := range [][]string{{"@bob"}, {"-t", "@BOB"}} {
		fake, b := setup(t, allowAll)

		run(t, b, "summon", alice, args...)

		assert.Equal(t, []testutils.Teleport{{
			UserID:   bob.ID,
			Position: room.Position{X: 3, Y: 0, Z: 3, Facing: "BackRight"},
		}}, fake.Teleports())
		assert.Equal(t, []string{"Poof! @Bob has been summoned by @alice!"}, fake.Chats())
		assert.Equal(t, []string{"Successfully summoned @Bob to your location!"}, fake.WhispersTo(alice.ID))
	}
}

func TestSummon_Failures(t *testing.T) {
	tests := []struct {
		name     string
		caller   room.User
		args     []string
		expected string
	}{
		{name: "no user", caller: alice, args: nil, expected: "Please specify a user to summon.\nUsage: !summon @username\n   or: !summon -t @username"},
		{name: "unknown user", caller: alice, args: []string{"@dave"}, expected: "Couldn't find user @dave in the room."},
		{name: "caller anchored", caller: carol, args: []string{"@bob"}, expected: "Couldn't determine your position in the room."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, b := setup(t, allowAll)

			run(t, b, "summon", tt.caller, tt.args...)

			assert.Empty(t, fake.Teleports())
			assert.Equal(t, []string{tt.expected}, fake.WhispersTo(tt.caller.ID))
		})
	}
}

func TestGoto_TeleportsCallerNextToTarget(t *testing.T) {
	fake, b := setup(t, allowAll)

	run(t, b, "goto", alice, "@bob")

	assert.Equal(t, []testutils.Teleport{{
		UserID:   alice.ID,
		Position: room.Position{X: 8.5, Y: 1, Z: 8.5, Facing: "FrontLeft"},
	}}, fake.Teleports())
	assert.Equal(t, []string{"Teleported @alice to @Bob's position!"}, fake.WhispersTo(alice.ID))
}

func TestGoto_TeleportsOneUserToAnother(t *testing.T) {
	fake, b := setup(t, allowAll)

	run(t, b, "goto", alice, "@bob", "@alice")

	assert.Equal(t, []testutils.Teleport{{
		UserID:   bob.ID,
		Position: room.Position{X: 2.5, Y: 0, Z: 3.5, Facing: "BackRight"},
	}}, fake.Teleports())
}

func TestGoto_Failures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{name: "no arguments", args: nil, expected: "Usage: !goto @username (teleports you to that user) or !goto @user1 @user2 (teleports user1 to user2)"},
		{name: "too many", args: []string{"a", "b", "c"}, expected: "Too many arguments. Usage: !goto @username or !goto @user1 @user2"},
		{name: "unknown traveller", args: []string{"@dave", "@bob"}, expected: "User '@dave' not found in the room."},
		{name: "unknown target", args: []string{"@dave"}, expected: "Target user '@dave' not found in the room."},
		{name: "anchored target", args: []string{"@carol"}, expected: "You can only teleport to users who are standing on the ground."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, b := setup(t, allowAll)

			run(t, b, "goto", alice, tt.args...)

			assert.Empty(t, fake.Teleports())
			assert.Equal(t, []string{tt.expected}, fake.WhispersTo(alice.ID))
		})
	}
}

func TestGoto_Gated(t *testing.T) {
	fake, b := setup(t, denyAll)

	run(t, b, "goto", alice, "@bob")

	assert.Empty(t, fake.Teleports())
	assert.Equal(t, []string{"denied"}, fake.WhispersTo(alice.ID))
}
