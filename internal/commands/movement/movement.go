// Package movement moves the bot and teleports users next to each other.
package movement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

const (
	// summonOffset keeps a summoned user from landing on the caller
	summonOffset = 1.0
	// gotoOffset keeps the traveller from landing on the target
	gotoOffset = 0.5
)

// Module contributes move, summon and goto
type Module struct {
	ownerOnly bot.Middleware
	logger    *slog.Logger
}

// NewModule creates the movement module. ownerOnly gates goto.
func NewModule(ownerOnly bot.Middleware, logger *slog.Logger) *Module {
	return &Module{ownerOnly: ownerOnly, logger: logger}
}

func (m *Module) Name() string {
	return "movement"
}

func (m *Module) Contribute(r bot.Registrar) error {
	if m.ownerOnly == nil {
		return errors.New("movement needs an owner gate")
	}
	r.Register("move", m.move, bot.WithDescription("Walk the bot: move x z [y]"))
	r.Register("summon", m.summon, bot.WithDescription("Bring a user next to you: summon @user"))
	r.Register("goto", m.ownerOnly(m.goTo), bot.WithDescription("Teleport to a user: goto @user or goto @user1 @user2"))
	return nil
}

func (m *Module) move(ctx context.Context, b *bot.Bot, _ room.User, args []string) error {
	if len(args) < 2 {
		return b.Chat(ctx, fmt.Sprintf("Please provide x and z coordinates. Example: %smove 5 10", b.Prefix()))
	}

	coords := []float64{0, 0, 0}
	for i, arg := range args[:min(len(args), 3)] {
		v, err := room.ParseCoordinate(arg)
		if err != nil {
			return b.Chat(ctx, fmt.Sprintf("Invalid coordinates. Please use numbers like: %smove 5 10", b.Prefix()))
		}
		coords[i] = v
	}
	x, z, y := coords[0], coords[1], coords[2]

	if err := b.WalkTo(ctx, room.Position{X: x, Y: y, Z: z, Facing: room.DefaultFacing}); err != nil {
		return err
	}
	return b.Chat(ctx, fmt.Sprintf("Moving to position: x=%g, y=%g, z=%g", x, y, z))
}

func (m *Module) summon(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	// "-t" is accepted before the name
	if len(args) > 1 && strings.EqualFold(args[0], "-t") {
		args = args[1:]
	}
	username := ""
	if len(args) > 0 {
		username = strings.TrimPrefix(args[0], "@")
	}
	if username == "" {
		p := b.Prefix()
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Please specify a user to summon.\nUsage: %ssummon @username\n   or: %ssummon -t @username", p, p))
	}

	target, found, err := b.FindUser(ctx, username)
	if err != nil {
		return err
	}
	if !found {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Couldn't find user @%s in the room.", username))
	}

	pos, ok, err := b.Position(ctx, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return b.Whisper(ctx, user.ID, "Couldn't determine your position in the room.")
	}
	pos.X += summonOffset

	if err := b.Teleport(ctx, target.User.ID, pos); err != nil {
		m.logger.Error("summon teleport failed", "target", target.User.ID, "error", err)
		return b.Chat(ctx, "Oops! I couldn't teleport there.")
	}
	if err := b.Chat(ctx, fmt.Sprintf("Poof! @%s has been summoned by @%s!", target.User.Username, user.Username)); err != nil {
		return err
	}
	return b.Whisper(ctx, user.ID, fmt.Sprintf("Successfully summoned @%s to your location!", target.User.Username))
}

func (m *Module) goTo(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	p := b.Prefix()
	traveller := user
	var targetName string

	switch len(args) {
	case 0:
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Usage: %sgoto @username (teleports you to that user) or %sgoto @user1 @user2 (teleports user1 to user2)", p, p))
	case 1:
		targetName = args[0]
	case 2:
		found, ok, err := b.FindUser(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return b.Whisper(ctx, user.ID, fmt.Sprintf("User '%s' not found in the room.", args[0]))
		}
		traveller = found.User
		targetName = args[1]
	default:
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Too many arguments. Usage: %sgoto @username or %sgoto @user1 @user2", p, p))
	}

	target, ok, err := b.FindUser(ctx, targetName)
	if err != nil {
		return err
	}
	if !ok {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Target user '%s' not found in the room.", targetName))
	}
	if target.Anchored {
		return b.Whisper(ctx, user.ID, "You can only teleport to users who are standing on the ground.")
	}

	pos := target.Position
	pos.X += gotoOffset
	pos.Z += gotoOffset
	if err := b.Teleport(ctx, traveller.ID, pos); err != nil {
		m.logger.Warn("offset teleport failed, trying exact position", "target", target.User.ID, "error", err)
		if err := b.Teleport(ctx, traveller.ID, target.Position); err != nil {
			return b.Whisper(ctx, user.ID, fmt.Sprintf("Failed to teleport: %v", err))
		}
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Teleported @%s to @%s's exact position!", traveller.Username, target.User.Username))
	}
	return b.Whisper(ctx, user.ID, fmt.Sprintf("Teleported @%s to @%s's position!", traveller.Username, target.User.Username))
}
