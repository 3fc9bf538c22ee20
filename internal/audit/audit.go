// Package audit records every command invocation and prunes old records.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"gorm.io/gorm"
)

// writeTimeout bounds the insert of one entry
const writeTimeout = 5 * time.Second

// Recorder stores invocation records
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a new audit recorder
func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger, now: time.Now}
}

// Middleware records each invocation after the handler returns. The
// handler's error is passed through untouched; a failed write is only logged.
func (r *Recorder) Middleware() bot.Middleware {
	return func(next bot.Handler) bot.Handler {
		return func(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
			start := r.now()
			err := next(ctx, b, user, args)

			inv, _ := bot.InvocationFrom(ctx)
			entry := Entry{
				Command:    inv.Name,
				UserID:     user.ID,
				Username:   user.Username,
				Whisper:    inv.Whisper,
				Success:    err == nil,
				DurationMS: r.now().Sub(start).Milliseconds(),
			}
			if err != nil {
				entry.Error = err.Error()
			}

			// The handler context may already be cancelled by a timeout
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
			defer cancel()
			if werr := r.Record(wctx, entry, args); werr != nil {
				r.logger.Error("failed to record invocation", "command", inv.Name, "user_id", user.ID, "error", werr)
			}
			return err
		}
	}
}

// Record stores entry with args encoded as a JSON array
func (r *Recorder) Record(ctx context.Context, entry Entry, args []string) error {
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	entry.Args = argsJSON

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to store audit entry: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}
	return entries, nil
}
