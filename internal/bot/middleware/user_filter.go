// Package middleware provides bot middleware for filtering and throttling commands.
package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

// UserFilter creates a middleware that drops commands from ignored users.
// Entries match a user id exactly or a username ignoring case and a leading '@'.
// If ignored is empty, every user is served.
func UserFilter(ignored []string, logger *slog.Logger) bot.Middleware {
	// Build lookup map for O(1) checking
	deny := make(map[string]bool, len(ignored))
	for _, entry := range ignored {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), "@")
		if entry == "" {
			continue
		}
		deny[entry] = true
		deny[strings.ToLower(entry)] = true
	}

	logger.Info("User filter", "ignored", len(deny) > 0, "users", ignored)

	return func(next bot.Handler) bot.Handler {
		return func(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
			if deny[user.ID] || deny[strings.ToLower(user.Username)] {
				logger.Info("ignoring command from filtered user", "user_id", user.ID, "username", user.Username)
				return nil
			}

			// User is allowed, proceed to next handler
			return next(ctx, b, user, args)
		}
	}
}
