package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/entitysync/internal/models"
)

func (c *Cli) runSave(ctx context.Context, typ, raw string) error {
	var e models.Entity
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return fmt.Errorf("invalid entity JSON: %w", err)
	}

	res, err := c.manager.SaveEntity(ctx, typ, e)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", typ, err)
	}
	if err := resultError("save", []models.TransactionResult{res}); err != nil {
		return err
	}

	c.printSaved(res)
	return nil
}

func (c *Cli) runSaveBatch(ctx context.Context, raw string) error {
	var batch models.Batch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return fmt.Errorf("invalid batch JSON: %w", err)
	}
	if batch.Len() == 0 {
		return fmt.Errorf("batch is empty")
	}

	results, err := c.manager.SaveEntities(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	if err := resultError("save", results); err != nil {
		return err
	}

	c.io.Printf("✓ Saved %d entities\n", len(results))
	for _, res := range results {
		c.printSaved(res)
	}
	return nil
}

func (c *Cli) printSaved(res models.TransactionResult) {
	switch {
	case res.ID < 0:
		c.io.Printf("  %s %d saved locally, will be sent on the next sync\n", res.Type, res.ID)
	case res.Promoted() && res.ClientID != 0:
		c.io.Printf("  %s %d saved (was %d)\n", res.Type, res.ID, res.ClientID)
	default:
		c.io.Printf("  %s %d saved\n", res.Type, res.ID)
	}
}
