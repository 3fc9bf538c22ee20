package emotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"golang.org/x/sync/errgroup"
)

const (
	heartReaction = "heart"
	// heartsForOne is sent to a single named user, heartsForAll to everyone
	heartsForOne = 10
	heartsForAll = 3
	// heartWorkers bounds how many users receive hearts at the same time
	heartWorkers = 4
)

func (m *Module) hearts(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) == 0 {
		p := b.Prefix()
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Hearts command:\n%sh @username - Send %d hearts to a user\n%sh all - Send %d hearts to everyone", p, heartsForOne, p, heartsForAll))
	}

	target := args[0]
	if strings.EqualFold(target, "all") {
		return m.heartEveryone(ctx, b, user)
	}

	if !strings.HasPrefix(target, "@") {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Invalid command. Use '%sh @username' or '%sh all'", b.Prefix(), b.Prefix()))
	}
	username := strings.TrimPrefix(target, "@")
	if username == "" {
		return b.Whisper(ctx, user.ID, "Please specify a username after @")
	}

	found, ok, err := b.FindUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("User @%s not found in the room", username))
	}

	if err := m.sendHearts(ctx, b, found.User.ID, heartsForOne); err != nil {
		return err
	}
	return b.Whisper(ctx, user.ID, fmt.Sprintf("Sent %d hearts to @%s!", heartsForOne, found.User.Username))
}

// heartEveryone sends hearts to everybody but the sender and the bot. A
// failure for one user doesn't stop the others.
func (m *Module) heartEveryone(ctx context.Context, b *bot.Bot, sender room.User) error {
	users, err := b.RoomUsers(ctx)
	if err != nil {
		return err
	}

	self := b.UserID()
	var g errgroup.Group
	g.SetLimit(heartWorkers)
	for _, u := range users {
		if u.User.ID == sender.ID || u.User.ID == self {
			continue
		}
		g.Go(func() error {
			if err := m.sendHearts(ctx, b, u.User.ID, heartsForAll); err != nil {
				m.logger.Warn("failed to send hearts", "user_id", u.User.ID, "username", u.User.Username, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return b.Whisper(ctx, sender.ID, fmt.Sprintf("Sent %d hearts to everyone in the room!", heartsForAll))
}

func (m *Module) sendHearts(ctx context.Context, b *bot.Bot, userID string, count int) error {
	for i := range count {
		if i > 0 && m.config.HeartDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.config.HeartDelay):
			}
		}
		if err := b.React(ctx, heartReaction, userID); err != nil {
			return err
		}
	}
	return nil
}
