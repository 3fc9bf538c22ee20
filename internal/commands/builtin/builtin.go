// Package builtin holds the commands every room bot ships with.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

// helpPageSize is how many commands one help whisper lists
const helpPageSize = 8

// Module contributes hello, help and tp
type Module struct{}

// NewModule creates the builtin module
func NewModule() *Module {
	return &Module{}
}

func (Module) Name() string {
	return "builtin"
}

func (Module) Contribute(r bot.Registrar) error {
	r.Register("hello", Hello, bot.WithDescription("Say hello"))
	r.Register("help", Help, bot.WithDescription("List the available commands"))
	r.Register("tp", Teleport, bot.WithDescription("Teleport yourself: tp x y z"))
	return nil
}

// Hello greets the room
func Hello(ctx context.Context, b *bot.Bot, _ room.User, _ []string) error {
	return b.Chat(ctx, "Hello!")
}

// Help whispers the registered commands to the caller, a few per message
func Help(ctx context.Context, b *bot.Bot, user room.User, _ []string) error {
	var lines []string
	for name, description := range b.Commands() {
		line := b.Prefix() + name
		if description != "" {
			line += " - " + description
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return b.Whisper(ctx, user.ID, "No commands available.")
	}

	for start := 0; start < len(lines); start += helpPageSize {
		end := min(start+helpPageSize, len(lines))
		text := strings.Join(lines[start:end], "\n")
		if start == 0 {
			text = "Available commands:\n" + text
		}
		if err := b.Whisper(ctx, user.ID, text); err != nil {
			return err
		}
	}
	return nil
}

// Teleport moves the caller to the coordinates x y z
func Teleport(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	usage := fmt.Sprintf("Usage: %stp x y z", b.Prefix())
	if len(args) != 3 {
		return b.Whisper(ctx, user.ID, usage)
	}

	var coords [3]float64
	for i, arg := range args {
		v, err := room.ParseCoordinate(arg)
		if err != nil {
			return b.Whisper(ctx, user.ID, fmt.Sprintf("Invalid coordinate %q. %s", arg, usage))
		}
		coords[i] = v
	}

	pos := room.Position{X: coords[0], Y: coords[1], Z: coords[2], Facing: room.DefaultFacing}
	if err := b.Teleport(ctx, user.ID, pos); err != nil {
		return err
	}
	return b.Whisper(ctx, user.ID, fmt.Sprintf("Teleported to %s", pos))
}
