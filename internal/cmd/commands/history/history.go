// Package history implements the command listing a source's version
// history.
package history

import (
	"context"
	"fmt"
	"strconv"

	"github.com/formwatch/formwatch/internal/cmd/base"
	"github.com/formwatch/formwatch/pkg/models"
)

type Command struct {
	*base.Command

	flagLimit int
}

func (c *Command) Synopsis() string {
	return "Show the version history of a monitored source"
}

func (c *Command) Help() string {
	return `Usage: formwatch history [-limit=N] <source-id>

  Lists the recorded versions of a source, newest first, with their digests
  and the URL each snapshot was fetched from.`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("history")
	f.IntVar(&c.flagLimit, "limit", 20, "maximum versions to list")
	if err := f.Parse(args); err != nil {
		return 1
	}
	if len(f.Args()) != 1 {
		c.UI.Error("exactly one source id is required")
		return 1
	}
	id, err := strconv.ParseUint(f.Args()[0], 10, 64)
	if err != nil {
		c.UI.Error(fmt.Sprintf("invalid source id %q", f.Args()[0]))
		return 1
	}

	_, db, err := c.Engine(context.Background())
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	var source models.MonitoredSource
	if err := db.First(&source, uint(id)).Error; err != nil {
		c.UI.Error(fmt.Sprintf("source %d not found", id))
		return 1
	}
	versions, err := models.GetVersionHistory(db, source.ID, c.flagLimit)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	c.UI.Output(fmt.Sprintf("%s (%s)", source.Name, source.URL))
	for _, v := range versions {
		line := fmt.Sprintf("  v%-3d %s  doc %.12s  text %.12s  %d pages",
			v.SequenceNumber, v.FetchedAt.Format("2006-01-02 15:04"),
			v.DocHash, v.TextHash, v.PageCount)
		if v.FetchedFrom != source.URL {
			line += "  from " + v.FetchedFrom
		}
		if v.LowConfidence {
			line += "  (low confidence)"
		}
		c.UI.Output(line)
	}
	return 0
}
