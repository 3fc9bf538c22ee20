package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"golang.org/x/time/rate"
)

// SlowDownMessage is whispered to a user who ran out of commands
const SlowDownMessage = "You're sending commands too fast, please slow down."

// sweepInterval is how often Start forgets idle users
const sweepInterval = time.Minute

// RateLimiter hands out one token bucket per user
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	logger   *slog.Logger
	now      func() time.Time
}

// NewRateLimiter allows perMinute commands per user with bursts of burst.
// A non positive perMinute disables limiting.
func NewRateLimiter(perMinute int, burst int, logger *slog.Logger) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		logger:   logger,
		now:      time.Now,
	}
}

// Allow reports whether userID may run a command now
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	limiter, ok := r.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[userID] = limiter
	}
	r.mu.Unlock()

	return limiter.AllowN(r.now(), 1)
}

// Sweep forgets users whose bucket has refilled, since a new bucket behaves
// the same. It returns how many users were dropped.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	dropped := 0
	for userID, limiter := range r.limiters {
		if r.limit == rate.Inf || limiter.TokensAt(now) >= float64(r.burst) {
			delete(r.limiters, userID)
			dropped++
		}
	}
	return dropped
}

// Len returns how many users are tracked
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// Start sweeps idle users until ctx is done
func (r *RateLimiter) Start(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if dropped := r.Sweep(); dropped > 0 {
				r.logger.Debug("rate limiter sweep", "dropped", dropped)
			}
		}
	}
}

// Middleware whispers SlowDownMessage instead of running the handler when
// the user is over the limit
func (r *RateLimiter) Middleware() bot.Middleware {
	return func(next bot.Handler) bot.Handler {
		return func(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
			if r.Allow(user.ID) {
				return next(ctx, b, user, args)
			}

			r.logger.Warn("rate limit exceeded", "user_id", user.ID, "username", user.Username)
			return b.Whisper(ctx, user.ID, SlowDownMessage)
		}
	}
}
