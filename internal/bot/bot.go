// Package bot implements command registration and dispatch for a room bot.
package bot

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/graffic/roombot/internal/room"
)

// Bot is the facade handlers act against. It wraps the room client and owns the
// command registry.
type Bot struct {
	client   room.Client
	registry *Registry
	prefix   string
	logger   *slog.Logger
}

// New creates a bot facade
func New(client room.Client, registry *Registry, prefix string, logger *slog.Logger) *Bot {
	return &Bot{
		client:   client,
		registry: registry,
		prefix:   prefix,
		logger:   logger,
	}
}

// Registry returns the registry owned by the bot
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Registrar returns the capability handed to command modules
func (b *Bot) Registrar() Registrar {
	return b.registry
}

// Command returns a registrar for name. Applying it to a handler registers the
// handler and returns it unchanged, so it stays callable on its own.
func (b *Bot) Command(name string, opts ...Option) func(Handler) Handler {
	return func(h Handler) Handler {
		b.registry.Register(name, h, opts...)
		return h
	}
}

// Commands yields (name, description) for every registered command
func (b *Bot) Commands() iter.Seq2[string, string] {
	return b.registry.List()
}

// Prefix returns the command prefix, for usage strings
func (b *Bot) Prefix() string {
	return b.prefix
}

// Logger returns the bot logger
func (b *Bot) Logger() *slog.Logger {
	return b.logger
}

// UserID returns the bot's own user id in the room
func (b *Bot) UserID() string {
	return b.client.UserID()
}

// Chat sends text to the room and returns once the room acknowledged it
func (b *Bot) Chat(ctx context.Context, text string) error {
	if err := b.client.Chat(ctx, text); err != nil {
		return fmt.Errorf("failed to send chat: %w", err)
	}
	return nil
}

// Whisper sends text privately to one user
func (b *Bot) Whisper(ctx context.Context, userID string, text string) error {
	if err := b.client.Whisper(ctx, userID, text); err != nil {
		return fmt.Errorf("failed to whisper to %s: %w", userID, err)
	}
	return nil
}

// Teleport moves a user to pos
func (b *Bot) Teleport(ctx context.Context, userID string, pos room.Position) error {
	if err := b.client.Teleport(ctx, userID, pos); err != nil {
		return fmt.Errorf("failed to teleport %s: %w", userID, err)
	}
	return nil
}

// WalkTo walks the bot to pos
func (b *Bot) WalkTo(ctx context.Context, pos room.Position) error {
	if err := b.client.WalkTo(ctx, pos); err != nil {
		return fmt.Errorf("failed to walk: %w", err)
	}
	return nil
}

// Emote performs an emote, on targetUserID when not empty
func (b *Bot) Emote(ctx context.Context, emoteID string, targetUserID string) error {
	if err := b.client.Emote(ctx, emoteID, targetUserID); err != nil {
		return fmt.Errorf("failed to emote %s: %w", emoteID, err)
	}
	return nil
}

// React sends a reaction to a user
func (b *Bot) React(ctx context.Context, reaction string, targetUserID string) error {
	if err := b.client.React(ctx, reaction, targetUserID); err != nil {
		return fmt.Errorf("failed to react to %s: %w", targetUserID, err)
	}
	return nil
}

// RoomUsers lists who is in the room
func (b *Bot) RoomUsers(ctx context.Context) ([]room.RoomUser, error) {
	users, err := b.client.RoomUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list room users: %w", err)
	}
	return users, nil
}

// FindUser looks a user up by username, ignoring case and a leading '@'
func (b *Bot) FindUser(ctx context.Context, username string) (room.RoomUser, bool, error) {
	users, err := b.RoomUsers(ctx)
	if err != nil {
		return room.RoomUser{}, false, err
	}
	username = strings.TrimPrefix(username, "@")
	for _, u := range users {
		if strings.EqualFold(u.User.Username, username) {
			return u, true, nil
		}
	}
	return room.RoomUser{}, false, nil
}

// Position returns where userID stands; ok is false when the user is absent or anchored
func (b *Bot) Position(ctx context.Context, userID string) (room.Position, bool, error) {
	users, err := b.RoomUsers(ctx)
	if err != nil {
		return room.Position{}, false, err
	}
	for _, u := range users {
		if u.User.ID == userID {
			return u.Position, !u.Anchored, nil
		}
	}
	return room.Position{}, false, nil
}
