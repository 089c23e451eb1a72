// Package config provides Viper-based configuration loading for the idle battle server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds the gRPC listener settings.
type GameServerConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// CombatConfig holds the damage and turn-limit tunables.
type CombatConfig struct {
	MaxTurns          int     `mapstructure:"max_turns"`
	MinDamage         int     `mapstructure:"min_damage"`
	VarianceMin       float64 `mapstructure:"variance_min"`
	VarianceMax       float64 `mapstructure:"variance_max"`
	UnarmedBaseDamage float64 `mapstructure:"unarmed_base_damage"`
}

// Rules converts the section into resolver rules.
func (c CombatConfig) Rules() combat.Rules {
	return combat.Rules{
		MaxTurns:          c.MaxTurns,
		MinDamage:         c.MinDamage,
		VarianceMin:       c.VarianceMin,
		VarianceMax:       c.VarianceMax,
		UnarmedBaseDamage: c.UnarmedBaseDamage,
	}
}

// CombatLogConfig holds retention and archival settings for combat logs.
type CombatLogConfig struct {
	MaxSessions int `mapstructure:"max_sessions"`
	MaxEntries  int `mapstructure:"max_entries"`
	MaxAgeDays  int `mapstructure:"max_age_days"`
	// CleanupInterval is how often in-memory sessions older than MaxAgeDays are evicted.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// ArchiveEnabled turns on PostgreSQL snapshots of the in-memory store.
	ArchiveEnabled  bool          `mapstructure:"archive_enabled"`
	ArchiveInterval time.Duration `mapstructure:"archive_interval"`
}

// ContentConfig points at the YAML and Lua content directories.
type ContentConfig struct {
	WeaponsDir    string `mapstructure:"weapons_dir"`
	EncountersDir string `mapstructure:"encounters_dir"`
	// ScriptsDir is optional; an empty value disables reward hooks.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
	Combat     CombatConfig     `mapstructure:"combat"`
	CombatLog  CombatLogConfig  `mapstructure:"combat_log"`
	Content    ContentConfig    `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateGameServer(c.GameServer),
		validateCombat(c.Combat),
		validateCombatLog(c.CombatLog),
		validateContent(c.Content),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	if g.GRPCPort < 1 || g.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("gameserver.grpc_port must be 1-65535, got %d", g.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("combat: %w", err)
	}
	return nil
}

func validateCombatLog(l CombatLogConfig) error {
	var errs []string
	if l.MaxSessions < 1 {
		errs = append(errs, fmt.Sprintf("combat_log.max_sessions must be >= 1, got %d", l.MaxSessions))
	}
	if l.MaxEntries < 1 {
		errs = append(errs, fmt.Sprintf("combat_log.max_entries must be >= 1, got %d", l.MaxEntries))
	}
	if l.MaxAgeDays < 1 {
		errs = append(errs, fmt.Sprintf("combat_log.max_age_days must be >= 1, got %d", l.MaxAgeDays))
	}
	if l.CleanupInterval <= 0 {
		errs = append(errs, "combat_log.cleanup_interval must be positive")
	}
	if l.ArchiveEnabled && l.ArchiveInterval <= 0 {
		errs = append(errs, "combat_log.archive_interval must be positive when archiving is enabled")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.WeaponsDir == "" {
		errs = append(errs, "content.weapons_dir must not be empty")
	}
	if c.EncountersDir == "" {
		errs = append(errs, "content.encounters_dir must not be empty")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and IDLE_ environment
// overrides applied but no config file attached.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("IDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "idle")
	v.SetDefault("database.password", "idle")
	v.SetDefault("database.name", "idlebattle")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50051)

	rules := combat.DefaultRules()
	v.SetDefault("combat.max_turns", rules.MaxTurns)
	v.SetDefault("combat.min_damage", rules.MinDamage)
	v.SetDefault("combat.variance_min", rules.VarianceMin)
	v.SetDefault("combat.variance_max", rules.VarianceMax)
	v.SetDefault("combat.unarmed_base_damage", rules.UnarmedBaseDamage)

	v.SetDefault("combat_log.max_sessions", 50)
	v.SetDefault("combat_log.max_entries", 1000)
	v.SetDefault("combat_log.max_age_days", 30)
	v.SetDefault("combat_log.cleanup_interval", "1h")
	v.SetDefault("combat_log.archive_enabled", false)
	v.SetDefault("combat_log.archive_interval", "5m")

	v.SetDefault("content.weapons_dir", "content/weapons")
	v.SetDefault("content.encounters_dir", "content/encounters")
	v.SetDefault("content.scripts_dir", "")
}
