package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNotConnected is returned when a request is made while no session is open
var ErrNotConnected = errors.New("room: not connected")

// Client defines the room operations the bot relies on.
// Every request method returns once the room service acknowledged it.
type Client interface {
	// Chat sends a public message to the room
	Chat(ctx context.Context, text string) error

	// Whisper sends a private message to a single user
	Whisper(ctx context.Context, userID string, text string) error

	// Teleport moves a user to a position
	Teleport(ctx context.Context, userID string, pos Position) error

	// WalkTo makes the bot walk to a position
	WalkTo(ctx context.Context, pos Position) error

	// Emote performs an emote, on a target user when targetUserID is not empty
	Emote(ctx context.Context, emoteID string, targetUserID string) error

	// React sends a reaction such as "heart" to a user
	React(ctx context.Context, reaction string, targetUserID string) error

	// RoomUsers lists the users currently in the room with their positions
	RoomUsers(ctx context.Context) ([]RoomUser, error)

	// Messages is the inbound chat stream, in the order the room reported it
	Messages() <-chan ChatMessage

	// UserID is the bot's own user id, empty until the first session opened
	UserID() string
}

// User identifies a room member
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Position is a point in the room. Facing is one of FrontRight, FrontLeft, BackRight, BackLeft.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Facing string  `json:"facing"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%g, %g, %g) facing %s", p.X, p.Y, p.Z, p.Facing)
}

// DefaultFacing is used when a position is built from bare coordinates
const DefaultFacing = "FrontRight"

// ParseCoordinate parses one position component. NaN and infinities are
// rejected since the room service can't encode them.
func ParseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not a finite number", s)
	}
	return v, nil
}

// RoomUser pairs a user with where they stand. Anchored users (sitting on furniture)
// report Anchored and a zero Position.
type RoomUser struct {
	User     User
	Position Position
	Anchored bool
}

// UnmarshalJSON decodes the [user, position] pairs of a room users response
func (r *RoomUser) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failed to decode room user: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("failed to decode room user: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.User); err != nil {
		return fmt.Errorf("failed to decode room user: %w", err)
	}

	var pos struct {
		Position
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(pair[1], &pos); err != nil {
		return fmt.Errorf("failed to decode room user position: %w", err)
	}
	if pos.EntityID != "" {
		r.Anchored = true
		return nil
	}
	r.Position = pos.Position
	return nil
}

// ChatMessage is an inbound chat line
type ChatMessage struct {
	User    User
	Text    string
	Whisper bool
}

// ResponseError is an error frame sent back by the room service
type ResponseError struct {
	RequestType string
	Message     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("room: %s failed: %s", e.RequestType, e.Message)
}
