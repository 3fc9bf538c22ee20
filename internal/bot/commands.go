package bot

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/graffic/roombot/internal/room"
)

// Handler runs a command. args holds the whitespace separated tokens after the
// command name, untouched: parsing and validation belong to the handler.
type Handler func(ctx context.Context, b *Bot, user room.User, args []string) error

// Command is a registered handler
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Option customises a registration
type Option func(*Command)

// WithDescription sets the text shown by help
func WithDescription(description string) Option {
	return func(c *Command) {
		c.Description = description
	}
}

// Registrar is what command modules receive to register their handlers
type Registrar interface {
	Register(name string, handler Handler, opts ...Option)
}

// CollisionPolicy decides what happens when a name is registered twice.
// The last registration always wins; the policy only controls reporting.
type CollisionPolicy int

const (
	CollisionWarn CollisionPolicy = iota
	CollisionSilent
)

// ParseCollisionPolicy maps the configuration value to a policy
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch s {
	case "", "warn":
		return CollisionWarn, nil
	case "silent":
		return CollisionSilent, nil
	default:
		return 0, fmt.Errorf("unknown collision policy %q", s)
	}
}

// Registry holds all registered commands.
// Reads and writes are serialised, so commands may be registered while dispatching.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]Command
	order     []string
	collision CollisionPolicy
	logger    *slog.Logger
}

// NewRegistry creates a new command registry
func NewRegistry(collision CollisionPolicy, logger *slog.Logger) *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		collision: collision,
		logger:    logger,
	}
}

// Register stores handler under name, replacing any previous registration.
// It panics on an empty name, a name containing whitespace or a nil handler.
func (r *Registry) Register(name string, handler Handler, opts ...Option) {
	mustValidate(name, handler)

	cmd := Command{Name: name, Handler: handler}
	for _, opt := range opts {
		opt(&cmd)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		if r.collision == CollisionWarn {
			r.logger.Warn("command registered twice, replacing previous handler", "command", name)
		}
	} else {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
	r.logger.Debug("registered command", "command", name)
}

// Resolve returns the command registered under name
func (r *Registry) Resolve(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List yields (name, description) pairs in registration order.
// A replaced command keeps the position of its first registration.
func (r *Registry) List() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, name := range r.Names() {
			cmd, ok := r.Resolve(name)
			if !ok {
				continue
			}
			if !yield(cmd.Name, cmd.Description) {
				return
			}
		}
	}
}

// Names returns the registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered commands
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

func mustValidate(name string, handler Handler) {
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		panic(fmt.Sprintf("bot: invalid command name %q", name))
	}
	if handler == nil {
		panic(fmt.Sprintf("bot: nil handler for command %q", name))
	}
}

// Ensure Registry implements Registrar
var _ Registrar = (*Registry)(nil)
