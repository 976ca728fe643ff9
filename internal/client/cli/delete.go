package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runDelete(ctx context.Context, typ string, args []string, yes bool) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	c.io.Println("=== Delete ===")
	c.io.Println()

	// Показываем что будет удалено
	c.io.Println("About to delete:")
	for _, id := range ids {
		if e, ok := c.manager.GetEntity(typ, id); ok {
			view := newEntityView(typ, e)
			summary := ""
			if len(view.Fields) > 0 {
				summary = fmt.Sprintf(" (%s: %s)", view.Fields[0].Name, view.Fields[0].Value)
			}
			c.io.Printf("  %s %d%s\n", typ, id, summary)
			continue
		}
		c.io.Printf("  %s %d (not in local cache)\n", typ, id)
	}
	c.io.Println()

	if !yes {
		confirm, err := c.io.ReadInput("Are you sure? (yes/no): ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if confirm != "yes" && confirm != "y" {
			c.io.Println("Deletion cancelled.")
			return nil
		}
	}

	results, err := c.manager.DeleteEntities(ctx, typ, ids)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", typ, err)
	}
	if err := resultError("delete", results); err != nil {
		return err
	}

	c.io.Printf("✓ Deleted %d %s entit%s\n", len(results), typ, plural(len(results), "y", "ies"))
	if !c.manager.IsOnline() {
		c.io.Println("Run 'entitysync sync' to send the deletion to the server.")
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
