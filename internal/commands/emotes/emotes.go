// Package emotes makes the bot dance and send hearts.
package emotes

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

// DefaultEmotes is the pool the random loop picks from
var DefaultEmotes = []string{
	"idle-loop-happy",
	"idle-loop-sitfloor",
	"idle-lookup",
	"emote-wave",
	"emote-kiss",
	"emote-laughing",
	"emote-yes",
	"emote-no",
	"dance-macarena",
	"dance-tiktok2",
	"idle-dance-casual",
	"emote-hello",
}

// stopTimeout bounds how long stopemote waits for the loop to finish
const stopTimeout = 5 * time.Second

// Config holds the random emote loop settings
type Config struct {
	Emotes   []string
	MinDelay time.Duration
	MaxDelay time.Duration
	// HeartDelay is the pause between two hearts sent to the same user
	HeartDelay time.Duration
}

// Module contributes startemote, stopemote and h
type Module struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewModule creates the emotes module
func NewModule(config Config, logger *slog.Logger) *Module {
	if len(config.Emotes) == 0 {
		config.Emotes = DefaultEmotes
	}
	return &Module{config: config, logger: logger}
}

func (m *Module) Name() string {
	return "emotes"
}

func (m *Module) Contribute(r bot.Registrar) error {
	r.Register("startemote", m.start, bot.WithDescription("Start performing random emotes"))
	r.Register("stopemote", m.stop, bot.WithDescription("Stop performing random emotes"))
	r.Register("h", m.hearts, bot.WithDescription("Send hearts: h @user or h all"))
	return nil
}

// Run keeps the module alive until ctx is done and then stops the emote loop
func (m *Module) Run(ctx context.Context) error {
	<-ctx.Done()
	m.Stop()
	return ctx.Err()
}

// Running reports whether the random emote loop is active
func (m *Module) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Stop ends the random emote loop and waits for it, returning false when it
// was not running
func (m *Module) Stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		m.logger.Warn("emote loop didn't stop cleanly")
	}
	return true
}

func (m *Module) start(ctx context.Context, b *bot.Bot, user room.User, _ []string) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return b.Chat(ctx, "I'm already performing random emotes!")
	}
	// The loop outlives this command, it only stops through Stop
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.mu.Unlock()

	m.logger.Info("starting random emotes", "user_id", user.ID, "username", user.Username)
	go func() {
		defer close(done)
		m.loop(loopCtx, b)
	}()

	return b.Chat(ctx, "Starting random emotes! Type "+b.Prefix()+"stopemote to stop.")
}

func (m *Module) stop(ctx context.Context, b *bot.Bot, user room.User, _ []string) error {
	if !m.Stop() {
		return b.Chat(ctx, "I'm not currently performing any emotes!")
	}
	m.logger.Info("stopped random emotes", "user_id", user.ID, "username", user.Username)
	return b.Chat(ctx, "Stopped random emotes!")
}

func (m *Module) loop(ctx context.Context, b *bot.Bot) {
	for {
		emote := m.config.Emotes[rand.N(len(m.config.Emotes))]
		if err := b.Emote(ctx, emote, ""); err != nil && ctx.Err() == nil {
			m.logger.Warn("failed to perform emote", "emote", emote, "error", err)
		}

		timer := time.NewTimer(m.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// delay picks a random pause between MinDelay and MaxDelay
func (m *Module) delay() time.Duration {
	spread := m.config.MaxDelay - m.config.MinDelay
	if spread <= 0 {
		return m.config.MinDelay
	}
	return m.config.MinDelay + rand.N(spread)
}
