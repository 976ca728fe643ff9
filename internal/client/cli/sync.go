package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/entitysync/internal/client/datamanager"
)

func (c *Cli) runInit(ctx context.Context) error {
	c.io.Println("=== Initialisation ===")
	c.io.Println()

	if !c.manager.IsOnline() {
		c.io.Println("✓ Local database is ready (offline, nothing downloaded)")
		return nil
	}

	result, err := c.manager.Synchronize(ctx, true)
	if err != nil {
		return fmt.Errorf("initial synchronization failed: %w", err)
	}
	if result.Offline {
		c.io.Println("⚠️  Server is unreachable, working with local data.")
		return nil
	}

	c.io.Printf("✓ Local database is ready, downloaded %d entities\n", result.PulledEntities)
	return nil
}

func (c *Cli) runSync(ctx context.Context, initial bool) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	if !c.manager.IsOnline() {
		return fmt.Errorf("cannot synchronize in offline mode")
	}

	c.io.Println("Starting synchronization with server...")

	result, err := c.manager.Synchronize(ctx, initial)
	if err != nil {
		if errors.Is(err, datamanager.ErrPushFailed) {
			c.io.Println("⚠️  Local changes could not be sent and are kept for the next sync.")
		}
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println()
	if result.Offline {
		c.io.Println("⚠️  Server is unreachable, working with local data.")
		return nil
	}

	c.io.Println("✓ Synchronization completed successfully!")
	c.io.Println()
	c.io.Printf("Pushed to server:   %d entities, %d deletions\n", result.PushedEntities, result.PushedDeletes)
	c.io.Printf("Pulled from server: %d entities, %d deletions\n", result.PulledEntities, result.PulledDeletes)

	return nil
}
