// Package owners keeps the list of bot owners and gates owner only commands.
package owners

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

// OnlyOwnersMessage is whispered to users running an owner only command
const OnlyOwnersMessage = "Only bot owners can use this command."

// Only returns a middleware that runs the handler for bot owners and
// whispers OnlyOwnersMessage to everybody else
func (s *Store) Only() bot.Middleware {
	return func(next bot.Handler) bot.Handler {
		return func(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
			ok, err := s.IsOwner(ctx, user)
			if err != nil {
				return err
			}
			if !ok {
				return b.Whisper(ctx, user.ID, OnlyOwnersMessage)
			}
			return next(ctx, b, user, args)
		}
	}
}

// Module contributes the owner management commands
type Module struct {
	store  *Store
	logger *slog.Logger
}

// NewModule creates the owners module
func NewModule(store *Store, logger *slog.Logger) *Module {
	return &Module{store: store, logger: logger}
}

func (m *Module) Name() string {
	return "owners"
}

func (m *Module) Contribute(r bot.Registrar) error {
	only := m.store.Only()
	r.Register("botowner", m.list, bot.WithDescription("List the bot owners"))
	r.Register("addowner", only(m.add), bot.WithDescription("Make a user a bot owner: addowner @user"))
	r.Register("remowner", only(m.remove), bot.WithDescription("Remove a bot owner: remowner @user"))
	return nil
}

func (m *Module) list(ctx context.Context, b *bot.Bot, _ room.User, _ []string) error {
	owners, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return b.Chat(ctx, "No bot owners found.")
	}

	names := make([]string, len(owners))
	for i, o := range owners {
		names[i] = o.Display()
	}
	return b.Chat(ctx, "Bot owners: "+strings.Join(names, ", "))
}

func (m *Module) add(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) != 1 {
		return b.Chat(ctx, fmt.Sprintf("Please specify a username: %saddowner @user", b.Prefix()))
	}
	username := strings.TrimPrefix(args[0], "@")

	target, found, err := b.FindUser(ctx, username)
	if err != nil {
		return err
	}

	if !found {
		// Stored by name, the id is recorded when they first run a command
		added, err := m.store.Add(ctx, room.User{Username: username})
		if err != nil {
			return err
		}
		if !added {
			return b.Chat(ctx, fmt.Sprintf("@%s is already a bot owner.", username))
		}
		m.logger.Info("owner added by name", "username", username, "by", user.ID)
		return b.Chat(ctx, fmt.Sprintf("Added @%s to bot owners, but couldn't verify their ID. They may need to be in the room.", username))
	}

	added, err := m.store.Add(ctx, target.User)
	if err != nil {
		return err
	}
	if !added {
		return b.Chat(ctx, fmt.Sprintf("@%s is already a bot owner.", target.User.Username))
	}
	m.logger.Info("owner added", "user_id", target.User.ID, "username", target.User.Username, "by", user.ID)
	return b.Chat(ctx, fmt.Sprintf("Added @%s to bot owners!", target.User.Username))
}

func (m *Module) remove(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) != 1 {
		return b.Chat(ctx, fmt.Sprintf("Please specify a username: %sremowner @user", b.Prefix()))
	}
	username := strings.TrimPrefix(args[0], "@")

	owner, removed, err := m.store.Remove(ctx, username)
	if err != nil {
		return err
	}
	if !removed {
		return b.Chat(ctx, fmt.Sprintf("No bot owner found with username @%s", username))
	}
	m.logger.Info("owner removed", "user_id", owner.UserID, "username", owner.Username, "by", user.ID)
	return b.Chat(ctx, fmt.Sprintf("Removed @%s from bot owners!", owner.Username))
}
