// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server and simulation settings.
//
// Every section has a DefaultX constructor; Load applies environment
// overrides on top of the defaults. Unset variables keep the default.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP and websocket settings.
type ServerConfig struct {
	Port            int           `env:"PORT"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	MaxConnections  int           `env:"WS_MAX_CONNECTIONS"` // websocket connections in total
	MaxPerIP        int           `env:"WS_MAX_PER_IP"`
	MaxMessageSize  int64         `env:"WS_MAX_MESSAGE"` // bytes
	SendQueue       int           `env:"WS_SEND_QUEUE"`  // frames buffered per connection
	JoinTimeout     time.Duration `env:"WS_JOIN_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
		CORSOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
		MaxConnections:  1000,
		MaxPerIP:        10,
		MaxMessageSize:  4096,
		SendQueue:       256,
		JoinTimeout:     5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig holds the tick loop and gameplay rules.
type SimulationConfig struct {
	TickRate              int           `env:"TICK_RATE"`     // ticks per second
	SyncInterval          time.Duration `env:"SYNC_INTERVAL"` // movement broadcast period
	InteractionRange      float64       `env:"INTERACTION_RANGE"`
	DeathExperienceLoss   float64       `env:"DEATH_EXPERIENCE_LOSS"` // fraction of experienceMax
	RespawnHealthFraction float64       `env:"RESPAWN_HEALTH_FRACTION"`
	RiskyActionCooldown   time.Duration `env:"RISKY_ACTION_COOLDOWN"`
	MaxLevelDifference    int           `env:"MAX_LEVEL_DIFFERENCE"`
	PartyExperienceBonus  float64       `env:"PARTY_EXPERIENCE_BONUS"`
	TradeSlots            int           `env:"TRADE_SLOTS"`
	RecipeSize            int           `env:"RECIPE_SIZE"`
	MaxAvatars            int           `env:"MAX_AVATARS"`
	InboxSize             int           `env:"INBOX_SIZE"`
	MaxNameLength         int           `env:"MAX_NAME_LENGTH"`
	Seed                  int64         `env:"SIM_SEED"` // 0 seeds from the clock
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:              20,
		SyncInterval:          100 * time.Millisecond,
		InteractionRange:      4,
		DeathExperienceLoss:   0.05,
		RespawnHealthFraction: 0.5,
		RiskyActionCooldown:   3 * time.Second,
		MaxLevelDifference:    20,
		PartyExperienceBonus:  0.1,
		TradeSlots:            6,
		RecipeSize:            6,
		MaxAvatars:            1000,
		InboxSize:             4096,
		MaxNameLength:         32,
	}
}

// TickInterval is the fixed simulation step.
func (c SimulationConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// PERSISTENCE CONFIGURATION
// =============================================================================

// PersistenceConfig holds the avatar store settings.
type PersistenceConfig struct {
	Path             string        `env:"DB_PATH"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL"` // 0 disables
	SaveTimeout      time.Duration `env:"SAVE_TIMEOUT"`
}

// DefaultPersistence returns the default persistence configuration.
func DefaultPersistence() PersistenceConfig {
	return PersistenceConfig{
		Path:             "data/avatars.db",
		AutosaveInterval: 5 * time.Minute,
		SaveTimeout:      5 * time.Second,
	}
}

// =============================================================================
// CONTENT & WORLD CONFIGURATION
// =============================================================================

// ContentConfig points at the content files. Empty paths use the copies
// embedded in the binary.
type ContentConfig struct {
	CatalogPath string `env:"CATALOG_PATH"` // yaml
	MapPath     string `env:"MAP_PATH"`     // toml
	JournalPath string `env:"JOURNAL_PATH"` // jsonl, empty keeps the journal in memory
}

// DefaultContent returns the default content configuration.
func DefaultContent() ContentConfig {
	return ContentConfig{}
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL"`  // debug, info, warn, error
	Format     string `env:"LOG_FORMAT"` // console or json
	File       string `env:"LOG_FILE"`   // empty logs to stdout only
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
}

// DefaultLogging returns the default logging configuration.
func DefaultLogging() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds the debug server settings.
type ObservabilityConfig struct {
	Enabled       bool   `env:"DEBUG_ENABLED"`
	ListenAddr    string `env:"DEBUG_ADDR"` // keep on localhost
	AllowExternal bool   `env:"ALLOW_DEBUG_EXTERNAL"`
	BasicAuthUser string `env:"DEBUG_USER"`
	BasicAuthPass string `env:"DEBUG_PASSWORD"`
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// =============================================================================
// RATE LIMIT CONFIGURATION
// =============================================================================

// RateLimitConfig holds HTTP and per-connection command limits.
type RateLimitConfig struct {
	RequestsPerSecond float64       `env:"RATE_LIMIT_RPS"`
	Burst             int           `env:"RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `env:"RATE_LIMIT_CLEANUP"`
	CommandsPerSecond float64       `env:"COMMAND_RATE"` // per websocket connection
	CommandBurst      int           `env:"COMMAND_BURST"`
}

// DefaultRateLimit returns the default rate limits.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		CommandsPerSecond: 30,
		CommandBurst:      60,
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Simulation    SimulationConfig
	Persistence   PersistenceConfig
	Content       ContentConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// Default returns the complete configuration without overrides.
func Default() AppConfig {
	return AppConfig{
		Server:        DefaultServer(),
		Simulation:    DefaultSimulation(),
		Persistence:   DefaultPersistence(),
		Content:       DefaultContent(),
		Logging:       DefaultLogging(),
		Observability: DefaultObservability(),
		RateLimit:     DefaultRateLimit(),
	}
}

// Load returns the complete configuration with environment overrides.
func Load() (AppConfig, error) {
	cfg := Default()
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv applies environment variables to target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c AppConfig) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Server.Port)
	case c.Simulation.TickRate <= 0 || c.Simulation.TickRate > 1000:
		return fmt.Errorf("invalid tick rate %d", c.Simulation.TickRate)
	case c.Simulation.SyncInterval < c.Simulation.TickInterval():
		return fmt.Errorf("sync interval %v shorter than a tick", c.Simulation.SyncInterval)
	case c.Simulation.TradeSlots <= 0 || c.Simulation.RecipeSize <= 0:
		return fmt.Errorf("trade slots and recipe size must be positive")
	case c.Simulation.MaxAvatars <= 0 || c.Simulation.InboxSize <= 0 || c.Simulation.MaxNameLength <= 0:
		return fmt.Errorf("avatar, inbox and name limits must be positive")
	case !fraction(c.Simulation.DeathExperienceLoss) || !fraction(c.Simulation.RespawnHealthFraction):
		return fmt.Errorf("death loss and respawn health must be within [0,1]")
	case c.Logging.Format != "console" && c.Logging.Format != "json":
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	return nil
}

func fraction(f float64) bool { return f >= 0 && f <= 1 }
