package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runReset(ctx context.Context, all, yes bool) error {
	c.io.Println("=== Reset ===")
	c.io.Println()

	if !yes {
		question := "Discard all pending local changes? (yes/no): "
		if all {
			question = "Wipe the whole local database? (yes/no): "
		}
		confirm, err := c.io.ReadInput(question)
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if confirm != "yes" && confirm != "y" {
			c.io.Println("Reset cancelled.")
			return nil
		}
	}

	if !all {
		if err := c.manager.DiscardLocalChanges(ctx); err != nil {
			return fmt.Errorf("failed to discard local changes: %w", err)
		}
		c.io.Println("✓ Pending local changes discarded")
		return nil
	}

	if err := c.manager.ClearLocalData(ctx); err != nil {
		return err
	}
	// Настройки клиента стираются вместе с базой: восстанавливаем их
	if err := c.engine.SaveSetting(ctx, SettingClientID, c.clientID); err != nil {
		return fmt.Errorf("failed to restore client id: %w", err)
	}
	if err := c.saveEncryptionSettings(ctx); err != nil {
		return err
	}

	c.io.Println("✓ Local database wiped")
	c.io.Println("Run 'entitysync sync' to download the data again.")
	return nil
}
