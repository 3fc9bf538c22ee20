package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

func (m *Module) followCommand(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) > 0 && strings.EqualFold(args[0], "stop") {
		if !m.stopFollowing() {
			return b.Whisper(ctx, user.ID, "I'm not following anyone.")
		}
		return b.Chat(ctx, "Stopped following.")
	}

	target := user
	if len(args) > 0 {
		username := strings.TrimPrefix(args[0], "@")
		if username == "" {
			return b.Whisper(ctx, user.ID, fmt.Sprintf("Usage: %sfollow [@username|stop]", b.Prefix()))
		}
		found, ok, err := b.FindUser(ctx, username)
		if err != nil {
			return err
		}
		if !ok {
			return b.Chat(ctx, fmt.Sprintf("Couldn't find user '%s' in the room.", username))
		}
		target = found.User
	}
	if target.ID == b.UserID() {
		return b.Whisper(ctx, user.ID, "I can't follow myself!")
	}

	// A new target replaces the current one
	m.mu.Lock()
	previous := m.follow
	l, loopCtx := newLoop(ctx)
	m.follow, m.target = l, target
	m.mu.Unlock()
	if previous != nil {
		previous.stop(m.logger)
	}

	m.logger.Info("following user", "user_id", target.ID, "username", target.Username, "by", user.ID)
	l.start(loopCtx, func(ctx context.Context) {
		m.trail(ctx, b, target)
		m.forgetFollow(l)
	})

	return b.Whisper(ctx, user.ID, fmt.Sprintf("Now following @%s!", target.Username))
}

// stopFollowing ends the follow loop, returning false when there was none
func (m *Module) stopFollowing() bool {
	m.mu.Lock()
	l := m.follow
	m.follow, m.target = nil, room.User{}
	m.mu.Unlock()

	if l == nil {
		return false
	}
	l.stop(m.logger)
	return true
}

// trail walks the bot behind target each time they move, until ctx is done
// or target leaves the room
func (m *Module) trail(ctx context.Context, b *bot.Bot, target room.User) {
	ticker := time.NewTicker(m.config.FollowInterval)
	defer ticker.Stop()

	var last room.Position
	walked := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		users, err := b.RoomUsers(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("failed to list room users", "error", err)
			}
			continue
		}

		current, ok := findByID(users, target.ID)
		if !ok {
			m.logger.Info("followed user left the room", "user_id", target.ID, "username", target.Username)
			if err := b.Chat(ctx, fmt.Sprintf("Couldn't find @%s in the room. Stopping follow.", target.Username)); err != nil && ctx.Err() == nil {
				m.logger.Warn("failed to announce follow stop", "error", err)
			}
			return
		}
		// Anchored users have no floor position to walk to
		if current.Anchored || (walked && near(current.Position, last)) {
			continue
		}

		if err := b.WalkTo(ctx, behind(current.Position, m.config.FollowDistance)); err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("failed to walk behind followed user", "user_id", target.ID, "error", err)
			}
			continue
		}
		last, walked = current.Position, true
	}
}

// forgetFollow drops l unless a newer follow replaced it
func (m *Module) forgetFollow(l *loop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.follow == l {
		m.follow, m.target = nil, room.User{}
	}
}
