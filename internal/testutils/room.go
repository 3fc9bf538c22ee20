package testutils

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/graffic/roombot/internal/room"
)

// Whisper is a recorded private message
type Whisper struct {
	UserID string
	Text   string
}

// Teleport is a recorded teleport request
type Teleport struct {
	UserID   string
	Position room.Position
}

// Emote is a recorded emote request
type Emote struct {
	EmoteID      string
	TargetUserID string
}

// Reaction is a recorded reaction request
type Reaction struct {
	Reaction     string
	TargetUserID string
}

// FakeRoom is an in-memory room.Client recording every request
type FakeRoom struct {
	mu        sync.Mutex
	chats     []string
	whispers  []Whisper
	teleports []Teleport
	walks     []room.Position
	emotes    []Emote
	reactions []Reaction

	// Users is returned by RoomUsers
	Users []room.RoomUser
	// Err, when set, is returned by every request
	Err error
	// BotID is returned by UserID
	BotID string

	messages chan room.ChatMessage
}

// NewFakeRoom creates a fake room with the given occupants
func NewFakeRoom(users ...room.RoomUser) *FakeRoom {
	return &FakeRoom{
		Users:    users,
		messages: make(chan room.ChatMessage, 100),
	}
}

// Say queues an inbound chat line
func (f *FakeRoom) Say(user room.User, text string) {
	f.messages <- room.ChatMessage{User: user, Text: text}
}

// Move changes where userID stands
func (f *FakeRoom) Move(userID string, pos room.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Users {
		if f.Users[i].User.ID == userID {
			f.Users[i].Position = pos
			f.Users[i].Anchored = false
		}
	}
}

// Leave removes userID from the room
func (f *FakeRoom) Leave(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users = slices.DeleteFunc(f.Users, func(u room.RoomUser) bool {
		return u.User.ID == userID
	})
}

// Close ends the inbound stream
func (f *FakeRoom) Close() {
	close(f.messages)
}

func (f *FakeRoom) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

func (f *FakeRoom) record(fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	fn()
	return nil
}

func (f *FakeRoom) Chat(ctx context.Context, text string) error {
	return f.record(func() { f.chats = append(f.chats, text) })
}

func (f *FakeRoom) Whisper(ctx context.Context, userID string, text string) error {
	return f.record(func() { f.whispers = append(f.whispers, Whisper{UserID: userID, Text: text}) })
}

func (f *FakeRoom) Teleport(ctx context.Context, userID string, pos room.Position) error {
	return f.record(func() { f.teleports = append(f.teleports, Teleport{UserID: userID, Position: pos}) })
}

func (f *FakeRoom) WalkTo(ctx context.Context, pos room.Position) error {
	return f.record(func() { f.walks = append(f.walks, pos) })
}

func (f *FakeRoom) Emote(ctx context.Context, emoteID string, targetUserID string) error {
	return f.record(func() { f.emotes = append(f.emotes, Emote{EmoteID: emoteID, TargetUserID: targetUserID}) })
}

func (f *FakeRoom) React(ctx context.Context, reaction string, targetUserID string) error {
	return f.record(func() { f.reactions = append(f.reactions, Reaction{Reaction: reaction, TargetUserID: targetUserID}) })
}

func (f *FakeRoom) RoomUsers(ctx context.Context) ([]room.RoomUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	users := make([]room.RoomUser, len(f.Users))
	copy(users, f.Users)
	return users, nil
}

func (f *FakeRoom) Messages() <-chan room.ChatMessage {
	return f.messages
}

func (f *FakeRoom) UserID() string {
	return f.BotID
}

// Chats returns the public messages sent so far
func (f *FakeRoom) Chats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chats...)
}

// Whispers returns the private messages sent so far
func (f *FakeRoom) Whispers() []Whisper {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Whisper(nil), f.whispers...)
}

// WhispersTo returns the texts whispered to userID
func (f *FakeRoom) WhispersTo(userID string) []string {
	var out []string
	for _, w := range f.Whispers() {
		if w.UserID == userID {
			out = append(out, w.Text)
		}
	}
	return out
}

// Teleports returns the teleports requested so far
func (f *FakeRoom) Teleports() []Teleport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Teleport(nil), f.teleports...)
}

// Walks returns the positions walked to so far
func (f *FakeRoom) Walks() []room.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]room.Position(nil), f.walks...)
}

// Emotes returns the emotes performed so far
func (f *FakeRoom) Emotes() []Emote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Emote(nil), f.emotes...)
}

// Reactions returns the reactions sent so far
func (f *FakeRoom) Reactions() []Reaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Reaction(nil), f.reactions...)
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Ensure FakeRoom implements room.Client
var _ room.Client = (*FakeRoom)(nil)
