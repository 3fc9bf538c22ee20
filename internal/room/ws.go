package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the room service.
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the room service.
	maxMessageSize = 1 << 20

	// Inbound chat lines buffered ahead of the dispatcher.
	messageBuffer = 100
)

// Options configures a WSClient
type Options struct {
	URL            string
	RoomID         string
	Token          string
	Keepalive      time.Duration
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int // 0 retries forever
}

// WSClient talks to the room service over a websocket.
// It implements the Client interface.
type WSClient struct {
	opts     Options
	dialer   *websocket.Dialer
	logger   *slog.Logger
	messages chan ChatMessage

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]pendingCall
	userID  string

	writeMu sync.Mutex
}

type pendingCall struct {
	requestType string
	ch          chan callResult
}

type callResult struct {
	raw []byte
	err error
}

// NewWSClient creates a client; no connection is made until Run
func NewWSClient(opts Options, logger *slog.Logger) *WSClient {
	return &WSClient{
		opts:     opts,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		messages: make(chan ChatMessage, messageBuffer),
	}
}

// Messages implements the Client interface. The channel is closed when Run returns.
func (c *WSClient) Messages() <-chan ChatMessage {
	return c.messages
}

// Connected reports whether a session is currently open
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// UserID returns the bot's own user id as announced by the room, if known
func (c *WSClient) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Run keeps a session open until ctx is cancelled, reconnecting after ReconnectDelay.
// It returns an error once MaxReconnects consecutive attempts have failed.
func (c *WSClient) Run(ctx context.Context) error {
	defer close(c.messages)

	failures := 0
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			c.logger.Info("room connection closed")
			return ctx.Err()
		}
		if connected {
			failures = 0
		}
		failures++

		if c.opts.MaxReconnects > 0 && failures > c.opts.MaxReconnects {
			return fmt.Errorf("room connection failed after %d attempts: %w", failures, err)
		}

		c.logger.Warn("room connection lost, reconnecting",
			"error", err,
			"attempt", failures,
			"delay", c.opts.ReconnectDelay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// session dials, then reads frames until the connection drops
func (c *WSClient) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("room-id", c.opts.RoomID)
	header.Set("api-token", c.opts.Token)

	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return false, fmt.Errorf("failed to dial room: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.pending = make(map[string]pendingCall)
	c.mu.Unlock()
	defer c.disconnect(conn)

	c.logger.Info("connected to room", "room_id", c.opts.RoomID)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock ReadMessage on shutdown
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()
	go c.keepalive(sessionCtx)

	return true, c.readLoop(sessionCtx, conn)
}

func (c *WSClient) disconnect(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	for rid, p := range c.pending {
		p.ch <- callResult{err: ErrNotConnected}
		delete(c.pending, rid)
	}
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read from room: %w", err)
		}
		c.handleFrame(ctx, data)
	}
}

func (c *WSClient) handleFrame(ctx context.Context, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	switch frame.Type {
	case typeSessionMetadata:
		var meta sessionMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			c.logger.Warn("failed to decode session metadata", "error", err)
			return
		}
		c.mu.Lock()
		c.userID = meta.UserID
		c.mu.Unlock()
		c.logger.Info("room session started", "user_id", meta.UserID)

	case typeChatEvent:
		var ev chatEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("failed to decode chat event", "error", err)
			return
		}
		// Ignore our own lines so replies never trigger commands
		if ev.User.ID != "" && ev.User.ID == c.UserID() {
			return
		}
		msg := ChatMessage{User: ev.User, Text: ev.Message, Whisper: ev.Whisper}
		select {
		case c.messages <- msg:
		case <-ctx.Done():
		}

	case typeError:
		if frame.RID == "" {
			c.logger.Error("room reported an error", "message", frame.Message)
			return
		}
		c.resolve(frame.RID, func(requestType string) callResult {
			return callResult{err: &ResponseError{RequestType: requestType, Message: frame.Message}}
		})

	default:
		if frame.RID == "" {
			c.logger.Debug("ignoring room event", "type", frame.Type)
			return
		}
		c.resolve(frame.RID, func(string) callResult {
			return callResult{raw: data}
		})
	}
}

func (c *WSClient) resolve(rid string, build func(requestType string) callResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[rid]
	if !ok {
		c.logger.Debug("response for unknown request", "rid", rid)
		return
	}
	delete(c.pending, rid)
	p.ch <- build(p.requestType)
}

func (c *WSClient) keepalive(ctx context.Context) {
	if c.opts.Keepalive <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.call(ctx, typeKeepaliveRequest, &keepaliveRequest{}); err != nil && ctx.Err() == nil {
				c.logger.Warn("keepalive failed", "error", err)
			}
		}
	}
}

// call sends a request and waits for the frame carrying the same rid
func (c *WSClient) call(ctx context.Context, requestType string, req request) ([]byte, error) {
	h := req.header()
	h.Type = requestType
	h.RID = uuid.NewString()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", requestType, err)
	}

	ch := make(chan callResult, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[h.RID] = pendingCall{requestType: requestType, ch: ch}
	c.mu.Unlock()
	defer c.forget(h.RID)

	if err := c.write(conn, data); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", requestType, err)
	}

	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	select {
	case res := <-ch:
		return res.raw, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s not acknowledged: %w", requestType, ctx.Err())
	}
}

func (c *WSClient) forget(rid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, rid)
}

func (c *WSClient) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Chat implements the Client interface
func (c *WSClient) Chat(ctx context.Context, text string) error {
	_, err := c.call(ctx, typeChatRequest, &chatRequest{Message: text})
	return err
}

// Whisper implements the Client interface
func (c *WSClient) Whisper(ctx context.Context, userID string, text string) error {
	_, err := c.call(ctx, typeChatRequest, &chatRequest{Message: text, WhisperTargetID: &userID})
	return err
}

// Teleport implements the Client interface
func (c *WSClient) Teleport(ctx context.Context, userID string, pos Position) error {
	_, err := c.call(ctx, typeTeleportRequest, &teleportRequest{UserID: userID, Destination: withFacing(pos)})
	return err
}

// WalkTo implements the Client interface
func (c *WSClient) WalkTo(ctx context.Context, pos Position) error {
	_, err := c.call(ctx, typeFloorHitRequest, &floorHitRequest{Destination: withFacing(pos)})
	return err
}

// Emote implements the Client interface
func (c *WSClient) Emote(ctx context.Context, emoteID string, targetUserID string) error {
	_, err := c.call(ctx, typeEmoteRequest, &emoteRequest{EmoteID: emoteID, TargetUserID: optional(targetUserID)})
	return err
}

// React implements the Client interface
func (c *WSClient) React(ctx context.Context, reaction string, targetUserID string) error {
	_, err := c.call(ctx, typeReactionRequest, &reactionRequest{Reaction: reaction, TargetUserID: targetUserID})
	return err
}

// RoomUsers implements the Client interface
func (c *WSClient) RoomUsers(ctx context.Context) ([]RoomUser, error) {
	raw, err := c.call(ctx, typeGetRoomUsersRequest, &getRoomUsersRequest{})
	if err != nil {
		return nil, err
	}
	var resp getRoomUsersResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode room users: %w", err)
	}
	return resp.Content, nil
}

func withFacing(pos Position) Position {
	if pos.Facing == "" {
		pos.Facing = DefaultFacing
	}
	return pos
}

// Ensure WSClient implements Client
var _ Client = (*WSClient)(nil)
