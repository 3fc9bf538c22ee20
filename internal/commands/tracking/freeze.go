package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

func (m *Module) freeze(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) == 0 || strings.TrimPrefix(args[0], "@") == "" {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Please mention a user to freeze. Example: %sfreeze @username", b.Prefix()))
	}
	username := strings.TrimPrefix(args[0], "@")

	target, ok, err := b.FindUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Could not find user @%s in the room.", username))
	}
	if target.User.ID == b.UserID() {
		return b.Whisper(ctx, user.ID, "I can't freeze myself!")
	}
	if target.Anchored {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("@%s is sitting down and can't be frozen right now.", target.User.Username))
	}

	m.mu.Lock()
	if _, frozen := m.frozen[target.User.ID]; frozen {
		m.mu.Unlock()
		return b.Whisper(ctx, user.ID, fmt.Sprintf("@%s is already frozen!", target.User.Username))
	}
	l, loopCtx := newLoop(ctx)
	m.frozen[target.User.ID] = l
	m.mu.Unlock()

	pos := target.Position
	m.logger.Info("freezing user", "user_id", target.User.ID, "username", target.User.Username, "position", pos.String(), "by", user.ID)
	l.start(loopCtx, func(ctx context.Context) {
		m.holdInPlace(ctx, b, target.User, pos)
		m.forgetFrozen(target.User.ID, l)
	})

	if err := b.Whisper(ctx, user.ID, fmt.Sprintf("@%s has been frozen in place!", target.User.Username)); err != nil {
		return err
	}
	return b.Whisper(ctx, target.User.ID, fmt.Sprintf("You've been frozen in place by @%s", user.Username))
}

func (m *Module) unfreeze(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) == 0 || strings.TrimPrefix(args[0], "@") == "" {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Please mention a user to unfreeze. Example: %sunfreeze @username", b.Prefix()))
	}
	username := strings.TrimPrefix(args[0], "@")

	target, ok, err := b.FindUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("User @%s not found in the room", username))
	}

	m.mu.Lock()
	l, frozen := m.frozen[target.User.ID]
	delete(m.frozen, target.User.ID)
	m.mu.Unlock()

	if !frozen {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("@%s is not frozen.", target.User.Username))
	}
	l.stop(m.logger)
	m.logger.Info("unfroze user", "user_id", target.User.ID, "username", target.User.Username, "by", user.ID)

	if err := b.Whisper(ctx, user.ID, fmt.Sprintf("@%s has been unfrozen!", target.User.Username)); err != nil {
		return err
	}
	if target.User.ID == user.ID {
		return nil
	}
	return b.Whisper(ctx, target.User.ID, fmt.Sprintf("@%s has unfrozen you!", user.Username))
}

// holdInPlace teleports target back to pos whenever they drift away, until
// ctx is done or they leave the room
func (m *Module) holdInPlace(ctx context.Context, b *bot.Bot, target room.User, pos room.Position) {
	ticker := time.NewTicker(m.config.FreezeInterval)
	defer ticker.Stop()

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
			m.logger.Info("frozen user left the room", "user_id", target.ID, "username", target.Username)
			return
		}
		if !current.Anchored && near(current.Position, pos) {
			continue
		}
		if err := b.Teleport(ctx, target.ID, pos); err != nil && ctx.Err() == nil {
			m.logger.Warn("failed to teleport frozen user back", "user_id", target.ID, "error", err)
		}
	}
}

// forgetFrozen drops l unless it was already replaced or removed
func (m *Module) forgetFrozen(userID string, l *loop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen[userID] == l {
		delete(m.frozen, userID)
	}
}
