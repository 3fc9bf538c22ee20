package middleware

import (
	"context"
	"testing"

	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/room"
	"github.com/graffic/roombot/internal/testutils"
)

func runFiltered(t *testing.T, ignored []string, user room.User) bool {
	t.Helper()

	middleware := UserFilter(ignored, testutils.DiscardLogger())

	called := false
	next := func(ctx context.Context, b *bot.Bot, user room.User, args []string) error {
		called = true
		return nil
	}

	handler := middleware(next)
	if err := handler(context.Background(), nil, user, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return called
}

func TestUserFilter_AllowedUser(t *testing.T) {
	called := runFiltered(t, []string{"spammer"}, room.User{ID: "u-1", Username: "alice"})

	if !called {
		t.Error("expected handler to be called for allowed user")
	}
}

func TestUserFilter_IgnoredUsername(t *testing.T) {
	called := runFiltered(t, []string{"@Spammer"}, room.User{ID: "u-2", Username: "spammer"})

	if called {
		t.Error("expected handler NOT to be called for ignored username")
	}
}

func TestUserFilter_IgnoredUserID(t *testing.T) {
	called := runFiltered(t, []string{"u-2"}, room.User{ID: "u-2", Username: "renamed"})

	if called {
		t.Error("expected handler NOT to be called for ignored user id")
	}
}

func TestUserFilter_AllowAll(t *testing.T) {
	// Empty list means nobody is ignored
	called := runFiltered(t, []string{}, room.User{ID: "u-3", Username: "anyone"})

	if !called {
		t.Error("expected handler to be called when nobody is ignored")
	}
}

func TestUserFilter_BlankEntriesIgnored(t *testing.T) {
	called := runFiltered(t, []string{"", "  ", "@"}, room.User{ID: "", Username: ""})

	if !called {
		t.Error("expected blank entries not to match users without a name")
	}
}
