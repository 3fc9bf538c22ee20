package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/graffic/roombot/internal/config"
	"github.com/graffic/roombot/internal/storage"
)

// NewTestDB opens a private in-memory SQLite database, migrates models and
// closes it when the test ends
func NewTestDB(t *testing.T, models ...interface{}) *storage.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}

	db, err := storage.New(cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}
