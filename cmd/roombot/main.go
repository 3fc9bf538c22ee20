package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graffic/roombot/internal/audit"
	"github.com/graffic/roombot/internal/bot"
	"github.com/graffic/roombot/internal/bot/middleware"
	"github.com/graffic/roombot/internal/commands/builtin"
	"github.com/graffic/roombot/internal/commands/emotes"
	"github.com/graffic/roombot/internal/commands/movement"
	"github.com/graffic/roombot/internal/commands/tracking"
	"github.com/graffic/roombot/internal/config"
	"github.com/graffic/roombot/internal/owners"
	"github.com/graffic/roombot/internal/places"
	"github.com/graffic/roombot/internal/room"
	"github.com/graffic/roombot/internal/storage"
	"golang.org/x/sync/errgroup"
)

// heartDelay is the pause between two hearts sent to the same user
const heartDelay = 500 * time.Millisecond

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))

	// Parse command/subcommand
	cmd := parseCommand()

	db, err := storage.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Execute command
	switch cmd {
	case "migrate":
		return migrate(db)
	case "server":
		return runServer(cfg, db)
	default:
		// Default: run migrations and server
		if err := migrate(db); err != nil {
			return err
		}
		return runServer(cfg, db)
	}
}

func parseCommand() string {
	if len(os.Args) < 2 {
		return "default"
	}
	return os.Args[1]
}

func migrate(db *storage.DB) error {
	slog.Info("running migrations")
	return db.AutoMigrate(&owners.Owner{}, &places.Place{}, &audit.Entry{})
}

func runServer(cfg *config.Config, db *storage.DB) error {
	slog.Info("starting roombot server", "environment", cfg.Environment)
	logger := slog.Default()

	// Create context with signal handling
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	ownerStore := owners.NewStore(db.DB)
	if err := ownerStore.Seed(ctx, cfg.Owners); err != nil {
		return err
	}

	client := room.NewWSClient(room.Options{
		URL:            cfg.Room.URL,
		RoomID:         cfg.Room.RoomID,
		Token:          cfg.Room.Token,
		Keepalive:      cfg.Room.Keepalive,
		RequestTimeout: cfg.Room.RequestTimeout,
		ReconnectDelay: cfg.Room.ReconnectDelay,
		MaxReconnects:  cfg.Room.MaxReconnects,
	}, logger.With("component", "room"))

	collision, err := bot.ParseCollisionPolicy(cfg.Commands.Collision)
	if err != nil {
		return err
	}
	registry := bot.NewRegistry(collision, logger)
	b := bot.New(client, registry, cfg.Commands.Prefix, logger)

	// Load command modules
	emoteModule := emotes.NewModule(emotes.Config{
		MinDelay:   cfg.Emotes.MinDelay,
		MaxDelay:   cfg.Emotes.MaxDelay,
		HeartDelay: heartDelay,
	}, logger.With("module", "emotes"))

	placesModule := places.NewModule(places.NewStore(db.DB), ownerStore.Only(), places.Config{
		Cooldown:  cfg.Places.Cooldown,
		PerMinute: cfg.Places.PerMinute,
	}, logger.With("module", "places"))
	trackingModule := tracking.NewModule(ownerStore.Only(), tracking.Config{
		FreezeInterval: cfg.Tracking.FreezeInterval,
		FollowInterval: cfg.Tracking.FollowInterval,
		FollowDistance: cfg.Tracking.FollowDistance,
	}, logger.With("module", "tracking"))

	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder = audit.NewRecorder(db.DB, logger)
	}

	modules, missing := bot.Select(catalog(ownerStore, placesModule, emoteModule, trackingModule, recorder, logger), cfg.Commands.Modules, cfg.Commands.Disabled)
	for _, m := range missing {
		slog.Error("configured module not found", "module", m.Module, "error", m.Err)
	}
	report := bot.NewLoader(b.Registrar(), logger).Load(modules...)
	if len(report.Loaded) == 0 && len(modules) > 0 {
		return fmt.Errorf("no command module could be loaded: %w", report.Err())
	}

	// Create dispatcher and middlewares
	dispatcher := bot.NewDispatcher(client.Messages(), b, bot.DispatcherOptions{
		Prefix:         cfg.Commands.Prefix,
		FoldCase:       cfg.Commands.FoldCase,
		UnknownReply:   cfg.Commands.UnknownReply,
		ErrorReply:     cfg.Commands.ErrorReply,
		HandlerTimeout: cfg.Commands.HandlerTimeout,
	}, logger)
	// Ignored and throttled users never reach the audit log or the unknown-command reply
	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger)
	dispatcher.Gate(
		middleware.UserFilter(cfg.Commands.IgnoredUsers, logger),
		limiter.Middleware(),
	)
	if recorder != nil {
		dispatcher.Use(recorder.Middleware())
	}

	// Create errgroup for concurrent component management
	g, ctx := errgroup.WithContext(ctx)

	// Component 1: Room connection
	g.Go(func() error {
		return client.Run(ctx)
	})

	// Component 2: Command dispatcher
	g.Go(func() error {
		return dispatcher.Start(ctx)
	})

	// Component 3: Emote loop owner
	g.Go(func() error {
		return emoteModule.Run(ctx)
	})

	// Component 4: Freeze and follow loops owner
	g.Go(func() error {
		return trackingModule.Run(ctx)
	})

	// Component 5: Throttling state sweepers
	g.Go(func() error {
		return limiter.Start(ctx)
	})
	g.Go(func() error {
		return placesModule.Run(ctx)
	})

	// Component 6: Audit cleaner
	if cfg.Audit.Enabled {
		cleaner := audit.NewCleaner(db.DB, audit.Config{
			CleanInterval: cfg.Audit.CleanInterval,
			KeepDuration:  cfg.Audit.KeepDuration,
		}, logger)
		g.Go(func() error {
			return cleaner.Start(ctx)
		})
	}

	slog.Info("all components started, waiting for shutdown signal",
		"modules", report.Loaded,
		"commands", registry.Len(),
	)

	// Wait for all components to complete
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("graceful shutdown completed")
			return nil
		}
		return fmt.Errorf("component error: %w", err)
	}

	slog.Info("application stopped")
	return nil
}

// catalog lists every compiled-in command module
func catalog(ownerStore *owners.Store, placesModule *places.Module, emoteModule *emotes.Module, trackingModule *tracking.Module, recorder *audit.Recorder, logger *slog.Logger) []bot.Module {
	ownerOnly := ownerStore.Only()

	modules := []bot.Module{
		builtin.NewModule(),
		owners.NewModule(ownerStore, logger.With("module", "owners")),
		placesModule,
		emoteModule,
		movement.NewModule(ownerOnly, logger.With("module", "movement")),
		trackingModule,
	}
	if recorder != nil {
		modules = append(modules, audit.NewModule(recorder, ownerOnly))
	}
	return modules
}
