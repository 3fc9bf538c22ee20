package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "ROOMBOT_"

// Config holds all application configuration
type Config struct {
	Environment string          `koanf:"environment"`
	LogLevel    string          `koanf:"log_level"`
	Room        RoomConfig      `koanf:"room"`
	Commands    CommandsConfig  `koanf:"commands"`
	Database    DatabaseConfig  `koanf:"database"`
	RateLimit   RateLimitConfig `koanf:"ratelimit"`
	Audit       AuditConfig     `koanf:"audit"`
	Places      PlacesConfig    `koanf:"places"`
	Emotes      EmotesConfig    `koanf:"emotes"`
	Tracking    TrackingConfig  `koanf:"tracking"`
	Owners      []string        `koanf:"owners"` // user ids seeded as bot owners
}

// RoomConfig holds the room service connection settings
type RoomConfig struct {
	URL            string        `koanf:"url"`
	RoomID         string        `koanf:"room_id"`
	Token          string        `koanf:"token"`
	Keepalive      time.Duration `koanf:"keepalive"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
	MaxReconnects  int           `koanf:"max_reconnects"` // 0 means retry forever
}

// CommandsConfig controls prefix parsing and dispatch policies
type CommandsConfig struct {
	Prefix         string        `koanf:"prefix"`
	FoldCase       bool          `koanf:"fold_case"`
	UnknownReply   string        `koanf:"unknown_reply"` // empty: ignore unknown commands; "{command}" is replaced with the name
	ErrorReply     string        `koanf:"error_reply"`   // empty: failures are only logged
	Collision      string        `koanf:"collision"`     // "silent" or "warn"
	HandlerTimeout time.Duration `koanf:"handler_timeout"`
	Modules        []string      `koanf:"modules"` // empty: every known module
	Disabled       []string      `koanf:"disabled"`
	IgnoredUsers   []string      `koanf:"ignored_users"` // user ids or usernames whose commands are dropped
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `koanf:"driver"` // "sqlite" or "postgres"
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`
}

// RateLimitConfig bounds how many commands a single user may run
type RateLimitConfig struct {
	PerMinute int `koanf:"per_minute"` // 0 disables the limiter
	Burst     int `koanf:"burst"`
}

// AuditConfig holds invocation log settings
type AuditConfig struct {
	Enabled       bool          `koanf:"enabled"`
	CleanInterval time.Duration `koanf:"clean_interval"`
	KeepDuration  time.Duration `koanf:"keep_duration"`
}

// PlacesConfig holds teleport location settings
type PlacesConfig struct {
	Cooldown  time.Duration `koanf:"cooldown"`
	PerMinute int           `koanf:"per_minute"`
}

// EmotesConfig bounds the pause between two emotes of the random emote loop
type EmotesConfig struct {
	MinDelay time.Duration `koanf:"min_delay"`
	MaxDelay time.Duration `koanf:"max_delay"`
}

// TrackingConfig holds the polling settings of freeze and follow
type TrackingConfig struct {
	FreezeInterval time.Duration `koanf:"freeze_interval"`
	FollowInterval time.Duration `koanf:"follow_interval"`
	FollowDistance float64       `koanf:"follow_distance"`
}

// DSN returns the connection string for the configured driver
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host,
			c.Port,
			c.User,
			c.Password,
			c.Database,
			c.SSLMode,
		)
	}
	return c.Path
}

// SlogLevel maps LogLevel to a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from defaults, config/<environment>.yaml and ROOMBOT_ environment variables
func Load(environment string) (*Config, error) {
	// .env is optional, real environment variables win over it
	_ = godotenv.Load()

	k := koanf.New(".")
	// Load defaults first (lowest priority)
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	configFile := fmt.Sprintf("config/%s.yaml", environment)
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		// Config file is optional
		slog.Debug("could not load config file", "file", configFile, "error", err)
	}

	// Environment variables override config file values, "__" separates nesting levels
	if err := k.Load(env.ProviderWithValue(EnvPrefix, "__", func(key string, value string) (string, interface{}) {
		finalKey := strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))

		switch k.Get(strings.ReplaceAll(finalKey, "__", ".")).(type) {
		case []interface{}, []string:
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return finalKey, parts
		}

		return finalKey, value
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Environment = environment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would make the dispatcher misbehave
func (c *Config) Validate() error {
	if c.Commands.Prefix == "" {
		return fmt.Errorf("commands.prefix must not be empty")
	}
	if strings.ContainsAny(c.Commands.Prefix, " \t\n") {
		return fmt.Errorf("commands.prefix must not contain whitespace")
	}
	switch c.Commands.Collision {
	case "silent", "warn":
	default:
		return fmt.Errorf("commands.collision must be \"silent\" or \"warn\", got %q", c.Commands.Collision)
	}
	if c.Emotes.MinDelay <= 0 || c.Emotes.MaxDelay < c.Emotes.MinDelay {
		return fmt.Errorf("emotes delays must be positive with min_delay <= max_delay")
	}
	if c.Tracking.FreezeInterval <= 0 || c.Tracking.FollowInterval <= 0 {
		return fmt.Errorf("tracking intervals must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", c.Database.Driver)
	}
	return nil
}

// defaultConfig returns the default configuration values
func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Room: RoomConfig{
			URL:            "wss://highrise.game/web/botapi",
			Keepalive:      15 * time.Second,
			RequestTimeout: 10 * time.Second,
			ReconnectDelay: time.Second,
			MaxReconnects:  0,
		},
		Commands: CommandsConfig{
			Prefix:       "!",
			FoldCase:     true,
			ErrorReply:   "Something went wrong running that command.",
			Collision:    "warn",
			Modules:      []string{},
			Disabled:     []string{},
			IgnoredUsers: []string{},
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Path:    "data/roombot.db",
			Port:    5432,
			SSLMode: "disable",
		},
		RateLimit: RateLimitConfig{
			PerMinute: 20,
			Burst:     5,
		},
		Audit: AuditConfig{
			Enabled:       true,
			CleanInterval: 10 * time.Minute,
			KeepDuration:  7 * 24 * time.Hour,
		},
		Places: PlacesConfig{
			Cooldown:  5 * time.Second,
			PerMinute: 5,
		},
		Emotes: EmotesConfig{
			MinDelay: 5 * time.Second,
			MaxDelay: 15 * time.Second,
		},
		Tracking: TrackingConfig{
			FreezeInterval: 500 * time.Millisecond,
			FollowInterval: 500 * time.Millisecond,
			FollowDistance: 1.5,
		},
		Owners: []string{},
	}
}
