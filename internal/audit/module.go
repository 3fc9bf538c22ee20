package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

const (
	defaultRecent = 5
	maxRecent     = 20
)

// Module contributes the audit command, which whispers the latest invocations
type Module struct {
	recorder  *Recorder
	ownerOnly bot.Middleware
}

// NewModule creates the audit module. ownerOnly gates the command.
func NewModule(recorder *Recorder, ownerOnly bot.Middleware) *Module {
	return &Module{recorder: recorder, ownerOnly: ownerOnly}
}

func (m *Module) Name() string {
	return "audit"
}

func (m *Module) Contribute(r bot.Registrar) error {
	if m.recorder == nil || m.ownerOnly == nil {
		return errors.New("audit needs a recorder and an owner gate")
	}
	r.Register("audit", m.ownerOnly(m.recent), bot.WithDescription(fmt.Sprintf("Show the latest commands: audit [1-%d]", maxRecent)))
	return nil
}

func (m *Module) recent(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	limit := defaultRecent
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > maxRecent {
			return b.Whisper(ctx, user.ID, fmt.Sprintf("Usage: %saudit [1-%d]", b.Prefix(), maxRecent))
		}
		limit = n
	}

	entries, err := m.recorder.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return b.Whisper(ctx, user.ID, "No commands recorded yet.")
	}

	for _, e := range entries {
		outcome := "ok"
		if !e.Success {
			outcome = "failed"
		}
		line := fmt.Sprintf("%s @%s %s%s %s (%dms)", e.CreatedAt.UTC().Format("15:04:05"), e.Username, b.Prefix(), e.Command, outcome, e.DurationMS)
		if err := b.Whisper(ctx, user.ID, line); err != nil {
			return err
		}
	}
	return nil
}
