package cli

import (
	"context"
	"fmt"
)

type typeCount struct {
	Name  string
	Count int
}

func (c *Cli) runStatus(ctx context.Context) error {
	status, err := c.manager.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	view := struct {
		LastSync string
		Types    []typeCount
		Unsaved  int
		Deleted  int
		Width    int
		Online   bool
	}{
		LastSync: status.LastSync,
		Unsaved:  status.Unsaved,
		Deleted:  status.Deleted,
		Online:   status.Online,
	}
	for _, typ := range c.manager.Types() {
		view.Types = append(view.Types, typeCount{Name: typ, Count: status.Cached[typ]})
		if len(typ) > view.Width {
			view.Width = len(typ)
		}
	}

	return render(c.io, "status", statusTemplate, view)
}
