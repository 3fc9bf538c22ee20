// Package places lets bot owners save named spots and teleport to them.
package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"golang.org/x/time/rate"
)

const (
	// pageSize is how many names one listing line holds
	pageSize = 10
	// teleportTimeout bounds a single teleport request
	teleportTimeout = 5 * time.Second
	// sweepInterval is how often Run forgets users who stopped teleporting
	sweepInterval = time.Minute
)

// Config holds teleport throttling settings
type Config struct {
	Cooldown  time.Duration
	PerMinute int
}

// Module contributes the go, goadd, gorem and places commands
type Module struct {
	store     *Store
	ownerOnly bot.Middleware
	config    Config
	logger    *slog.Logger

	mu       sync.Mutex
	lastTrip map[string]time.Time
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewModule creates the places module. ownerOnly gates every command.
func NewModule(store *Store, ownerOnly bot.Middleware, config Config, logger *slog.Logger) *Module {
	return &Module{
		store:     store,
		ownerOnly: ownerOnly,
		config:    config,
		logger:    logger,
		lastTrip:  make(map[string]time.Time),
		limiters:  make(map[string]*rate.Limiter),
		now:       time.Now,
	}
}

func (m *Module) Name() string {
	return "places"
}

// Run sweeps throttling state until ctx is done
func (m *Module) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if dropped := m.Sweep(); dropped > 0 {
				m.logger.Debug("places throttle sweep", "dropped", dropped)
			}
		}
	}
}

// Sweep forgets users whose cooldown is over and whose rate limit has fully
// refilled. It returns how many entries were dropped.
func (m *Module) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for userID, last := range m.lastTrip {
		if now.Sub(last) >= m.config.Cooldown {
			delete(m.lastTrip, userID)
			dropped++
		}
	}
	for userID, limiter := range m.limiters {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(m.limiters, userID)
			dropped++
		}
	}
	return dropped
}

// tracked returns how many users hold throttling state
func (m *Module) tracked() (trips int, limiters int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lastTrip), len(m.limiters)
}

func (m *Module) Contribute(r bot.Registrar) error {
	if m.store == nil {
		return errors.New("places need a store")
	}
	if m.ownerOnly == nil {
		return errors.New("places need an owner gate")
	}

	r.Register("go", m.ownerOnly(m.teleport), bot.WithDescription("Teleport to a saved place: go [place]"))
	r.Register("goadd", m.ownerOnly(m.add), bot.WithDescription("Save your position as a place: goadd name"))
	r.Register("gorem", m.ownerOnly(m.remove), bot.WithDescription("Delete a saved place: gorem name"))
	r.Register("places", m.ownerOnly(m.list), bot.WithDescription("List saved places"))
	return nil
}

func (m *Module) teleport(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) == 0 {
		return m.list(ctx, b, user, args)
	}
	name := Normalize(strings.Join(args, " "))

	if wait, ok := m.admit(user.ID); !ok {
		if wait == 0 {
			return b.Whisper(ctx, user.ID, "Too many requests. Please wait a moment before trying again.")
		}
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Please wait %d seconds before teleporting again!", int(wait.Seconds())))
	}

	place, found, err := m.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Unknown place '%s'. Use %splaces to see available locations.", name, b.Prefix()))
	}

	tctx, cancel := context.WithTimeout(ctx, teleportTimeout)
	defer cancel()
	if err := b.Teleport(tctx, user.ID, place.Position()); err != nil {
		m.logger.Error("teleport failed", "place", name, "user_id", user.ID, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return b.Whisper(ctx, user.ID, "Teleport timed out. Please try again.")
		}
		return b.Whisper(ctx, user.ID, "Failed to teleport. Please try again later.")
	}
	return b.Whisper(ctx, user.ID, fmt.Sprintf("You've been teleported to %s!", name))
}

// admit applies the per user rate limit, then the cooldown. When the cooldown
// refuses the trip it returns the remaining wait.
func (m *Module) admit(userID string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.PerMinute > 0 {
		limiter, ok := m.limiters[userID]
		if !ok {
			limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.config.PerMinute)), m.config.PerMinute)
			m.limiters[userID] = limiter
		}
		if !limiter.AllowN(m.now(), 1) {
			return 0, false
		}
	}

	now := m.now()
	if last, ok := m.lastTrip[userID]; ok {
		if since := now.Sub(last); since < m.config.Cooldown {
			// Round up so a refusal never reads "wait 0 seconds"
			return (m.config.Cooldown - since + time.Second - 1).Truncate(time.Second), false
		}
	}
	m.lastTrip[userID] = now
	return 0, true
}

func (m *Module) add(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) == 0 {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Please specify a name for the place. Usage: %sgoadd [place_name]", b.Prefix()))
	}
	name := Normalize(strings.Join(args, " "))

	pos, ok, err := b.Position(ctx, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return b.Whisper(ctx, user.ID, "Could not determine your position.")
	}

	place, err := m.store.Save(ctx, name, pos, user.ID)
	if err != nil {
		return err
	}
	m.logger.Info("place saved", "place", place.Name, "user_id", user.ID)
	return b.Whisper(ctx, user.ID, fmt.Sprintf("Added new place: %s at %s", place.Name, place.Position()))
}

func (m *Module) remove(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
	if len(args) == 0 {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Please specify a place to remove. Usage: %sgorem [place_name]", b.Prefix()))
	}
	name := Normalize(strings.Join(args, " "))

	deleted, err := m.store.Delete(ctx, name)
	if err != nil {
		return err
	}
	if !deleted {
		return b.Whisper(ctx, user.ID, fmt.Sprintf("Place '%s' does not exist.", name))
	}
	m.logger.Info("place removed", "place", name, "user_id", user.ID)
	return b.Whisper(ctx, user.ID, fmt.Sprintf("Removed place: %s", name))
}

func (m *Module) list(ctx context.Context, b *bot.Bot, user room.User, _ []string) error {
	names, err := m.store.Names(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return b.Whisper(ctx, user.ID, "No places available. Contact a moderator.")
	}

	if err := b.Whisper(ctx, user.ID, fmt.Sprintf("Available places (showing %d at a time):", pageSize)); err != nil {
		return err
	}
	for page, start := 1, 0; start < len(names); page, start = page+1, start+pageSize {
		end := min(start+pageSize, len(names))
		line := fmt.Sprintf("Page %d: %s", page, strings.Join(names[start:end], ", "))
		if err := b.Whisper(ctx, user.ID, line); err != nil {
			return err
		}
	}
	return nil
}
