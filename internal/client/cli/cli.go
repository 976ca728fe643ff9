// Package cli implements the entitysync command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/iudanet/entitysync/internal/client/api"
	"github.com/iudanet/entitysync/internal/client/config"
	"github.com/iudanet/entitysync/internal/client/datamanager"
	"github.com/iudanet/entitysync/internal/client/iocli"
	"github.com/iudanet/entitysync/internal/client/local"
	"github.com/iudanet/entitysync/internal/client/memory"
	"github.com/iudanet/entitysync/internal/client/repository"
	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/crypto"
	"github.com/iudanet/entitysync/internal/validation"
)

// Настройки клиента, которые хранятся в локальной базе
const (
	SettingClientID          = "CLIENT_ID"
	SettingEncryptionSalt    = "ENCRYPTION_SALT"
	SettingEncryptionCheck   = "ENCRYPTION_CHECK"
	encryptionCheckPlaintext = "entitysync"
)

var (
	// ErrEncryptedStore is returned when an encrypted database is opened without encryption
	ErrEncryptedStore = errors.New("local database is encrypted, enable encryption and provide the passphrase")

	// ErrPlainStore is returned when encryption is enabled for an existing plain database
	ErrPlainStore = errors.New("local database was created without encryption")

	// ErrWrongPassphrase is returned when the passphrase does not open the database
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

// BuildInfo is set via ldflags during build.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Cli holds one command invocation: configuration, the open local
// database and the data manager on top of it.
type Cli struct {
	io         iocli.IO
	stderr     io.Writer
	viper      *viper.Viper
	cfg        *config.Config
	logger     *slog.Logger
	manager    *datamanager.Manager
	engine     storage.Engine
	registry   *prometheus.Registry
	closers    []func() error
	build      BuildInfo
	configFile string
	clientID   string
	salt       string
	check      string
	keyParams  crypto.KeyParams
}

// New creates a client bound to the given terminal.
func New(terminal iocli.IO, stderr io.Writer, build BuildInfo) *Cli {
	return &Cli{
		io:        terminal,
		stderr:    stderr,
		viper:     config.New(),
		build:     build,
		logger:    slog.Default(),
		keyParams: crypto.DefaultKeyParams(),
	}
}

// open loads the configuration and prepares the data manager.
func (c *Cli) open(ctx context.Context) error {
	cfg, err := config.Load(c.viper, c.configFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, closeLog, err := newLogger(cfg.Log, c.stderr)
	if err != nil {
		return err
	}
	c.logger = logger
	c.closers = append(c.closers, closeLog)

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	c.engine = engine
	c.closers = append(c.closers, engine.Close)

	repoOpts := []repository.Option{repository.WithLogger(logger)}
	sealer, err := c.setupSealer(ctx, engine)
	if err != nil {
		return err
	}
	if sealer != nil {
		repoOpts = append(repoOpts, repository.WithSealer(sealer))
	}
	repo := repository.New(engine, repoOpts...)

	if err := c.ensureClientID(ctx, engine); err != nil {
		return err
	}

	remote := api.NewClient(cfg.Server,
		api.WithTimeout(cfg.Timeout),
		api.WithToken(cfg.Token),
		api.WithClientID(c.clientID),
		api.WithLogger(logger),
	)

	manager, err := c.newManager(remote, local.NewProvider(repo, nil, logger))
	if err != nil {
		return err
	}
	c.manager = manager

	if err := manager.Init(ctx); err != nil {
		return err
	}
	return manager.LoadFromLocal(ctx)
}

func (c *Cli) newManager(remote api.Remote, localProvider *local.Provider) (*datamanager.Manager, error) {
	schema, err := c.cfg.Schema()
	if err != nil {
		return nil, err
	}
	policy, err := datamanager.ParsePushPolicy(c.cfg.Push.Policy)
	if err != nil {
		return nil, err
	}
	rules, err := c.cfg.RequiredRules()
	if err != nil {
		return nil, err
	}

	opts := []datamanager.Option{
		datamanager.WithLogger(c.logger),
		datamanager.WithOnline(!c.cfg.Offline),
	}
	if len(rules) > 0 {
		opts = append(opts, datamanager.WithHooks(datamanager.Hooks{
			OnValidateEntity: validation.RequiredFields(rules),
		}))
	}
	if c.cfg.Metrics.Textfile != "" {
		c.registry = prometheus.NewRegistry()
		opts = append(opts, datamanager.WithRegisterer(c.registry))
	}

	return datamanager.New(datamanager.Config{
		Schema:       schema,
		Types:        c.cfg.Types,
		PushRetries:  c.cfg.Push.Retries,
		RetryBackoff: c.cfg.Push.Backoff,
		PushPolicy:   policy,
	}, localProvider, memory.NewProvider(), remote, opts...)
}

// ensureClientID читает идентификатор узла или создает новый
func (c *Cli) ensureClientID(ctx context.Context, settings storage.SettingsStorage) error {
	id, ok, err := settings.GetSetting(ctx, SettingClientID)
	if err != nil {
		return fmt.Errorf("failed to read client id: %w", err)
	}
	if !ok || id == "" {
		id = uuid.NewString()
		if err := settings.SaveSetting(ctx, SettingClientID, id); err != nil {
			return fmt.Errorf("failed to save client id: %w", err)
		}
	}
	c.clientID = id
	return nil
}

// setupSealer returns the at-rest sealer, or nil when encryption is off.
// The salt and a sealed check value live in the settings, so a wrong
// passphrase is detected before any entity is read.
func (c *Cli) setupSealer(ctx context.Context, engine storage.Engine) (*crypto.Sealer, error) {
	salt, hasSalt, err := engine.GetSetting(ctx, SettingEncryptionSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to read encryption salt: %w", err)
	}

	if !c.cfg.Encryption.Enabled {
		if hasSalt {
			return nil, ErrEncryptedStore
		}
		return nil, nil
	}

	if !hasSalt {
		hasData, err := engine.HasStores(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect local database: %w", err)
		}
		if hasData {
			return nil, ErrPlainStore
		}
		if salt, err = crypto.GenerateSaltBase64(); err != nil {
			return nil, err
		}
	}

	passphrase, err := c.passphrase()
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKeyFromBase64Salt(passphrase, salt, c.keyParams)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}

	if hasSalt {
		check, _, err := engine.GetSetting(ctx, SettingEncryptionCheck)
		if err != nil {
			return nil, fmt.Errorf("failed to read encryption check: %w", err)
		}
		plain, err := sealer.OpenString(check)
		if err != nil || plain != encryptionCheckPlaintext {
			return nil, ErrWrongPassphrase
		}
		c.salt, c.check = salt, check
		return sealer, nil
	}

	check, err := sealer.SealString(encryptionCheckPlaintext)
	if err != nil {
		return nil, err
	}
	c.salt, c.check = salt, check
	if err := c.saveEncryptionSettings(ctx); err != nil {
		return nil, err
	}
	return sealer, nil
}

func (c *Cli) saveEncryptionSettings(ctx context.Context) error {
	if c.salt == "" {
		return nil
	}
	if err := c.engine.SaveSetting(ctx, SettingEncryptionSalt, c.salt); err != nil {
		return fmt.Errorf("failed to save encryption salt: %w", err)
	}
	if err := c.engine.SaveSetting(ctx, SettingEncryptionCheck, c.check); err != nil {
		return fmt.Errorf("failed to save encryption check: %w", err)
	}
	return nil
}

// passphrase reads the passphrase with priority:
// 1. encryption.passphrase (config file or ENTITYSYNC_ENCRYPTION_PASSPHRASE)
// 2. Interactive prompt (fallback)
func (c *Cli) passphrase() (string, error) {
	if c.cfg.Encryption.Passphrase != "" {
		return c.cfg.Encryption.Passphrase, nil
	}

	passphrase, err := c.io.ReadPassword("Passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if passphrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return passphrase, nil
}

// Close writes metrics and releases the database and the log file.
func (c *Cli) Close() error {
	var errs []error
	if c.registry != nil {
		if err := prometheus.WriteToTextfile(c.cfg.Metrics.Textfile, c.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
