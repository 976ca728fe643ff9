package cli

import (
	"encoding/json"
	"fmt"
)

func (c *Cli) runList(typ string, asJSON bool) error {
	if err := c.checkType(typ); err != nil {
		return err
	}

	entities := c.manager.GetEntities(typ)

	if asJSON {
		enc := json.NewEncoder(c.io)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entities); err != nil {
			return fmt.Errorf("failed to encode %s: %w", typ, err)
		}
		return nil
	}

	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, newEntityView(typ, e))
	}

	return render(c.io, "list", entityListTemplate, struct {
		Type     string
		Entities []entityView
	}{Type: typ, Entities: views})
}

func (c *Cli) checkType(typ string) error {
	for _, t := range c.manager.Types() {
		if t == typ {
			return nil
		}
	}
	return fmt.Errorf("unknown type %q, configured types: %v", typ, c.manager.Types())
}
