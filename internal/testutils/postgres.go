//go:build integration

package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/graffic/roombot/internal/config"
	"github.com/graffic/roombot/internal/storage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NewPostgresDB starts a throwaway PostgreSQL container, migrates models and
// removes the container when the test ends
func NewPostgresDB(t *testing.T, models ...interface{}) *storage.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("roombot_test"),
		postgres.WithUsername("roombot_test"),
		postgres.WithPassword("roombot_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	db, err := storage.New(&config.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     port.Int(),
		User:     "roombot_test",
		Password: "roombot_test",
		Database: "roombot_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
