package main

import (
	"path/filepath"
	"testing"

	"github.com/graffic/roombot/internal/audit"
	"github.com/graffic/roombot/internal/config"
	"github.com/graffic/roombot/internal/owners"
	"github.com/graffic/roombot/internal/places"
	"github.com/graffic/roombot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_DefaultDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := config.Load("test")
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)

	db, err := storage.New(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrate(db))
	// A second run over existing tables is a no-op
	require.NoError(t, migrate(db))

	for _, model := range []interface{}{&owners.Owner{}, &places.Place{}, &audit.Entry{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.FileExists(t, filepath.Join(dir, cfg.Database.Path))
}
