package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/graffic/roombot/internal/room"
)

// replyTimeout bounds the unknown-command and error replies sent by the dispatcher
const replyTimeout = 10 * time.Second

// Middleware wraps every handler invocation. The current Invocation is
// available through InvocationFrom.
type Middleware func(next Handler) Handler

// Invocation is a parsed command line
type Invocation struct {
	Name    string
	Args    []string
	Raw     string // text after the prefix
	User    room.User
	Whisper bool
}

type invocationKey struct{}

// InvocationFrom returns the invocation being dispatched
func InvocationFrom(ctx context.Context) (Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(Invocation)
	return inv, ok
}

// HandlerError reports a failed or panicking handler
type HandlerError struct {
	Command string
	UserID  string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("command %q from user %s failed: %v", e.Command, e.UserID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// DispatcherOptions holds dispatch policies
type DispatcherOptions struct {
	Prefix string
	// FoldCase lower-cases the command name before lookup
	FoldCase bool
	// UnknownReply is sent for unregistered commands; "{command}" is replaced
	// with the name. Empty ignores unknown commands.
	UnknownReply string
	// ErrorReply is sent when a handler fails. Empty only logs.
	ErrorReply string
	// HandlerTimeout cancels the handler context after the given time; 0 never does
	HandlerTimeout time.Duration
}

// Dispatcher routes inbound chat lines to registered handlers
type Dispatcher struct {
	inCh        <-chan room.ChatMessage
	bot         *Bot
	opts        DispatcherOptions
	gates       []Middleware
	middlewares []Middleware
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewDispatcher creates a dispatcher reading from inCh
func NewDispatcher(inCh <-chan room.ChatMessage, b *Bot, opts DispatcherOptions, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		inCh:   inCh,
		bot:    b,
		opts:   opts,
		logger: logger,
	}
}

// Use appends middlewares; the first one added runs outermost
func (d *Dispatcher) Use(mws ...Middleware) {
	d.middlewares = append(d.middlewares, mws...)
}

// Gate appends middlewares that run before every middleware added with Use.
// Unlike those, gates also guard the unknown-command reply.
func (d *Dispatcher) Gate(mws ...Middleware) {
	d.gates = append(d.gates, mws...)
}

// Start dispatches messages until the channel closes or ctx is cancelled,
// then waits for running handlers.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting dispatcher", "prefix", d.opts.Prefix, "commands", d.bot.registry.Len())
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping dispatcher")
			return ctx.Err()
		case msg, ok := <-d.inCh:
			if !ok {
				d.logger.Info("message stream closed, stopping dispatcher")
				return nil
			}
			d.Dispatch(ctx, msg)
		}
	}
}

// Dispatch handles one message. Handlers run on their own goroutine, so
// Dispatch returns without waiting for them; it reports whether one was started.
func (d *Dispatcher) Dispatch(ctx context.Context, msg room.ChatMessage) bool {
	inv, ok := Parse(d.opts.Prefix, msg.Text, d.opts.FoldCase)
	if !ok {
		return false
	}
	inv.User = msg.User
	inv.Whisper = msg.Whisper

	cmd, ok := d.bot.registry.Resolve(inv.Name)
	if !ok {
		d.logger.Debug("unknown command", "command", inv.Name, "user_id", inv.User.ID)
		if d.opts.UnknownReply != "" {
			text := strings.ReplaceAll(d.opts.UnknownReply, "{command}", inv.Name)
			reply := wrap(func(ctx context.Context, _ *Bot, _ room.User, _ []string) error {
				d.reply(ctx, text)
				return nil
			}, d.gates)
			d.wg.Go(func() {
				_ = d.call(context.WithValue(ctx, invocationKey{}, inv), reply, inv)
			})
		}
		return false
	}

	d.wg.Go(func() {
		_ = d.invoke(ctx, cmd, inv)
	})
	return true
}

// Wait blocks until every started handler has returned
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// invoke runs the handler and contains its failure
func (d *Dispatcher) invoke(ctx context.Context, cmd Command, inv Invocation) error {
	ctx = context.WithValue(ctx, invocationKey{}, inv)
	if d.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.HandlerTimeout)
		defer cancel()
	}

	d.logger.Info("executing command", "command", inv.Name, "user_id", inv.User.ID, "username", inv.User.Username)

	start := time.Now()
	err := d.call(ctx, d.chain(cmd.Handler), inv)
	if err == nil {
		d.logger.Debug("command completed", "command", inv.Name, "duration", time.Since(start))
		return nil
	}

	herr := &HandlerError{Command: inv.Name, UserID: inv.User.ID, Err: err}
	d.logger.Error("command execution failed",
		"command", inv.Name,
		"user_id", inv.User.ID,
		"username", inv.User.Username,
		"error", err,
	)
	if d.opts.ErrorReply != "" {
		d.reply(ctx, d.opts.ErrorReply)
	}
	return herr
}

// call runs h, turning a panic into an error
func (d *Dispatcher) call(ctx context.Context, h Handler, inv Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked", "command", inv.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, d.bot, inv.User, inv.Args)
}

func (d *Dispatcher) chain(h Handler) Handler {
	return wrap(wrap(h, d.middlewares), d.gates)
}

func wrap(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// reply sends a dispatcher generated message. It outlives a handler timeout
// so the error reply still goes out.
func (d *Dispatcher) reply(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	if err := d.bot.Chat(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("failed to send reply", "error", err)
	}
}

// Parse splits a chat line into an invocation. ok is false when the text does
// not start with prefix or holds nothing after it.
func Parse(prefix string, text string, foldCase bool) (Invocation, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Invocation{}, false
	}

	raw := strings.TrimPrefix(text, prefix)
	// "! hello" is not a command: the name must follow the prefix directly
	if first, _ := utf8.DecodeRuneInString(raw); raw == "" || unicode.IsSpace(first) {
		return Invocation{}, false
	}

	fields := strings.Fields(raw)
	name := fields[0]
	if foldCase {
		name = strings.ToLower(name)
	}

	return Invocation{Name: name, Args: fields[1:], Raw: raw}, true
}
