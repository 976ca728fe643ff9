package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/entitysync/internal/client/config"
	"github.com/iudanet/entitysync/internal/client/storage"
	"github.com/iudanet/entitysync/internal/client/storage/boltdb"
	"github.com/iudanet/entitysync/internal/client/storage/memstore"
	"github.com/iudanet/entitysync/internal/client/storage/sqlite"
)

// openEngine открывает выбранный движок локального хранилища
func openEngine(ctx context.Context, cfg *config.Config) (storage.Engine, error) {
	var (
		engine storage.Engine
		err    error
	)
	switch cfg.Engine {
	case config.EngineBolt:
		engine, err = boltdb.New(ctx, cfg.DB)
	case config.EngineSQLite:
		engine, err = sqlite.New(ctx, cfg.DB)
	case config.EngineMemory:
		engine = memstore.New()
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidEngine, cfg.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database %s: %w", cfg.Engine, cfg.DB, err)
	}

	if !engine.IsSupported() {
		_ = engine.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrNotSupported, cfg.Engine)
	}
	return engine, nil
}
