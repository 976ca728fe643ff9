package cli

import (
	"fmt"
)

func (c *Cli) runGet(typ, rawID string) error {
	if err := c.checkType(typ); err != nil {
		return err
	}
	ids, err := parseIDs([]string{rawID})
	if err != nil {
		return err
	}

	e, ok := c.manager.GetEntity(typ, ids[0])
	if !ok {
		return fmt.Errorf("%s not found with ID: %d", typ, ids[0])
	}

	return render(c.io, "entity", entityTemplate, newEntityView(typ, e))
}
