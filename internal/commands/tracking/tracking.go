// Package tracking keeps an eye on users over time: freezing them in place
// and having the bot follow them around.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
)

const (
	// stopTimeout bounds how long stopping waits for a loop to finish
	stopTimeout = 5 * time.Second
	// tolerance is how far a frozen user may drift before being pulled back
	tolerance = 0.1
)

// Config holds the polling settings of the tracking loops
type Config struct {
	FreezeInterval time.Duration
	FollowInterval time.Duration
	// FollowDistance is how far behind its target the bot walks
	FollowDistance float64
}

// Module contributes freeze, unfreeze and follow
type Module struct {
	ownerOnly bot.Middleware
	config    Config
	logger    *slog.Logger

	mu     sync.Mutex
	frozen map[string]*loop
	follow *loop
	target room.User
}

// NewModule creates the tracking module. ownerOnly gates freeze and unfreeze.
func NewModule(ownerOnly bot.Middleware, config Config, logger *slog.Logger) *Module {
	return &Module{
		ownerOnly: ownerOnly,
		config:    config,
		logger:    logger,
		frozen:    make(map[string]*loop),
	}
}

func (m *Module) Name() string {
	return "tracking"
}

func (m *Module) Contribute(r bot.Registrar) error {
	if m.ownerOnly == nil {
		return errors.New("tracking needs an owner gate")
	}
	r.Register("freeze", m.ownerOnly(m.freeze), bot.WithDescription("Keep a user in place: freeze @user"))
	r.Register("unfreeze", m.ownerOnly(m.unfreeze), bot.WithDescription("Release a frozen user: unfreeze @user"))
	r.Register("follow", m.followCommand, bot.WithDescription("Make the bot follow you or a user: follow [@user|stop]"))
	return nil
}

// Run keeps the module alive until ctx is done and then stops every loop
func (m *Module) Run(ctx context.Context) error {
	<-ctx.Done()
	m.StopAll()
	return ctx.Err()
}

// StopAll ends every freeze and the follow loop and waits for them
func (m *Module) StopAll() {
	m.mu.Lock()
	loops := make([]*loop, 0, len(m.frozen)+1)
	for userID, l := range m.frozen {
		loops = append(loops, l)
		delete(m.frozen, userID)
	}
	if m.follow != nil {
		loops = append(loops, m.follow)
		m.follow = nil
	}
	m.mu.Unlock()

	for _, l := range loops {
		l.stop(m.logger)
	}
}

// Frozen reports whether userID is being held in place
func (m *Module) Frozen(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.frozen[userID]
	return ok
}

// Following returns the user the bot follows
func (m *Module) Following() (room.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target, m.follow != nil
}

// loop is a background goroutine that outlives the command starting it
type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// newLoop detaches from the command context so the loop keeps running after
// the handler returns
func newLoop(ctx context.Context) (*loop, context.Context) {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &loop{cancel: cancel, done: make(chan struct{})}, loopCtx
}

func (l *loop) start(ctx context.Context, fn func(ctx context.Context)) {
	go func() {
		defer close(l.done)
		fn(ctx)
	}()
}

func (l *loop) stop(logger *slog.Logger) {
	l.cancel()
	select {
	case <-l.done:
	case <-time.After(stopTimeout):
		logger.Warn("tracking loop didn't stop cleanly")
	}
}

func findByID(users []room.RoomUser, userID string) (room.RoomUser, bool) {
	for _, u := range users {
		if u.User.ID == userID {
			return u, true
		}
	}
	return room.RoomUser{}, false
}

func near(a room.Position, b room.Position) bool {
	return math.Abs(a.X-b.X) <= tolerance &&
		math.Abs(a.Y-b.Y) <= tolerance &&
		math.Abs(a.Z-b.Z) <= tolerance
}

// facingVectors maps a facing to the direction a user looks at on the floor
var facingVectors = map[string][2]float64{
	"FrontRight": {1, 1},
	"FrontLeft":  {-1, 1},
	"BackRight":  {1, -1},
	"BackLeft":   {-1, -1},
	"Front":      {0, 1},
	"Back":       {0, -1},
	"Right":      {1, 0},
	"Left":       {-1, 0},
}

// behind returns the spot distance units behind pos, looking the same way
func behind(pos room.Position, distance float64) room.Position {
	v, ok := facingVectors[pos.Facing]
	if !ok {
		v = [2]float64{1, 0}
	}
	angle := math.Atan2(v[0], v[1])
	return room.Position{
		X:      pos.X - distance*math.Sin(angle),
		Y:      pos.Y,
		Z:      pos.Z - distance*math.Cos(angle),
		Facing: pos.Facing,
	}
}
