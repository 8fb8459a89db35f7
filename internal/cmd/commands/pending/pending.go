// Package pending implements the command listing changes awaiting review.
package pending

import (
	"context"
	"fmt"

	"github.com/formwatch/formwatch/internal/cmd/base"
	"github.com/formwatch/formwatch/pkg/models"
)

type Command struct {
	*base.Command

	flagLimit int
}

func (c *Command) Synopsis() string {
	return "List change records awaiting review"
}

func (c *Command) Help() string {
	return `Usage: formwatch pending [-limit=N]

  Lists detected and downloaded change records, oldest first. Approved
  changes and binary-only changes, which carry no text difference to
  review, are excluded.`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("pending")
	f.IntVar(&c.flagLimit, "limit", 0, "maximum records to list")
	if err := f.Parse(args); err != nil {
		return 1
	}

	_, db, err := c.Engine(context.Background())
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	records, err := models.GetPendingChanges(db, c.flagLimit)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	if len(records) == 0 {
		c.UI.Output("no pending changes")
		return 0
	}

	for _, r := range records {
		line := fmt.Sprintf("change %d  source %d  %-12s %-10s detected %s",
			r.ID, r.MonitoredSourceID, r.Category, r.ReviewState,
			r.DetectedAt.Format("2006-01-02 15:04"))
		if r.RelocatedFromURL != "" {
			line += "  (relocated from " + r.RelocatedFromURL + ")"
		}
		c.UI.Output(line)
	}
	return 0
}
