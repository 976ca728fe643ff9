// Package config loads client settings from defaults, an optional YAML file,
// ENTITYSYNC_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/entitysync/internal/models"
	"github.com/iudanet/entitysync/internal/validation"
)

// EnvPrefix is the prefix of environment variables, e.g. ENTITYSYNC_SERVER.
const EnvPrefix = "ENTITYSYNC"

// Поддерживаемые движки локального хранилища
const (
	EngineBolt   = "bolt"
	EngineSQLite = "sqlite"
	EngineMemory = "memory"
)

// Ключи конфигурации
const (
	KeyServer               = "server"
	KeyDB                   = "db"
	KeyEngine               = "engine"
	KeyTypes                = "types"
	KeyRelations            = "relations"
	KeyRequired             = "validate.required"
	KeyOffline              = "offline"
	KeyTimeout              = "timeout"
	KeyToken                = "token"
	KeyPushPolicy           = "push.policy"
	KeyPushRetries          = "push.retries"
	KeyPushBackoff          = "push.backoff"
	KeyLogLevel             = "log.level"
	KeyLogFile              = "log.file"
	KeyLogMaxSizeMB         = "log.max_size_mb"
	KeyLogMaxBackups        = "log.max_backups"
	KeyEncryptionEnabled    = "encryption.enabled"
	KeyEncryptionPassphrase = "encryption.passphrase"
	KeyMetricsTextfile      = "metrics.textfile"
)

var (
	// ErrNoTypes is returned when no entity types are configured
	ErrNoTypes = errors.New("no entity types configured")

	// ErrInvalidEngine is returned for an unknown storage engine
	ErrInvalidEngine = errors.New("invalid storage engine")

	// ErrInvalidRelation is returned for a malformed relation definition
	ErrInvalidRelation = errors.New("invalid relation")
)

// Config holds the client settings.
type Config struct {
	Server     string           `mapstructure:"server"`
	DB         string           `mapstructure:"db"`
	Engine     string           `mapstructure:"engine"`
	Token      string           `mapstructure:"token"`
	Types      []string         `mapstructure:"types"`
	Relations  []string         `mapstructure:"relations"` // Relations в формате Type.Field=Related
	Validation ValidateConfig   `mapstructure:"validate"`
	Push       PushConfig       `mapstructure:"push"`
	Log        LogConfig        `mapstructure:"log"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Timeout    time.Duration    `mapstructure:"timeout"`
	Offline    bool             `mapstructure:"offline"`
}

// ValidateConfig describes built-in entity validation.
type ValidateConfig struct {
	Required []string `mapstructure:"required"` // Required в формате Type.Field
}

// PushConfig controls how pending local changes are pushed.
type PushConfig struct {
	Policy  string        `mapstructure:"policy"`
	Retries uint64        `mapstructure:"retries"`
	Backoff time.Duration `mapstructure:"backoff"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// EncryptionConfig controls at-rest encryption of the local database.
type EncryptionConfig struct {
	Passphrase string `mapstructure:"passphrase"`
	Enabled    bool   `mapstructure:"enabled"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile is a path for the node_exporter textfile collector
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers the default value of every key.
// Keys without a default are invisible to environment lookups.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServer, "http://localhost:8080")
	v.SetDefault(KeyDB, "entitysync.db")
	v.SetDefault(KeyEngine, EngineBolt)
	v.SetDefault(KeyTypes, []string{})
	v.SetDefault(KeyRelations, []string{})
	v.SetDefault(KeyRequired, []string{})
	v.SetDefault(KeyOffline, false)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyPushPolicy, "retain")
	v.SetDefault(KeyPushRetries, 3)
	v.SetDefault(KeyPushBackoff, 200*time.Millisecond)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyEncryptionEnabled, false)
	v.SetDefault(KeyEncryptionPassphrase, "")
	v.SetDefault(KeyMetricsTextfile, "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the settings.
// An empty path skips the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Переменные окружения приходят строкой "A,B"
	cfg.Types = splitList(cfg.Types)
	cfg.Relations = splitList(cfg.Relations)
	cfg.Validation.Required = splitList(cfg.Validation.Required)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that can't be checked later.
func (c *Config) Validate() error {
	if len(c.Types) == 0 {
		return ErrNoTypes
	}
	if err := validation.ValidateTypes(c.Types); err != nil {
		return err
	}

	switch c.Engine {
	case EngineBolt, EngineSQLite, EngineMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Engine)
	}

	if _, err := c.Schema(); err != nil {
		return err
	}
	if _, err := c.RequiredRules(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Schema builds the foreign-key schema from the configured relations.
func (c *Config) Schema() (*models.Schema, error) {
	schema := models.NewSchema(c.Types)
	for _, rel := range c.Relations {
		source, related, ok := strings.Cut(rel, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q, expected Type.Field=Related", ErrInvalidRelation, rel)
		}
		typ, field, ok := strings.Cut(strings.TrimSpace(source), ".")
		related = strings.TrimSpace(related)
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: %q, expected Type.Field=Related", ErrInvalidRelation, rel)
		}
		if !schema.HasType(typ) || !schema.HasType(related) {
			return nil, fmt.Errorf("%w: %q references an unknown type", ErrInvalidRelation, rel)
		}
		schema.Relate(typ, field, related)
	}
	return schema, nil
}

// RequiredRules groups the required fields by entity type.
func (c *Config) RequiredRules() (map[string][]string, error) {
	rules := make(map[string][]string)
	for _, rule := range c.Validation.Required {
		typ, field, ok := strings.Cut(strings.TrimSpace(rule), ".")
		if !ok || typ == "" || field == "" {
			return nil, fmt.Errorf("invalid required field %q, expected Type.Field", rule)
		}
		rules[typ] = append(rules[typ], field)
	}
	return rules, nil
}

// SlogLevel parses the log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// splitList разворачивает элементы вида "A,B" и убирает пустые
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
