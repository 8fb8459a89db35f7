// Package edit implements the command for manual source corrections.
package edit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/formwatch/formwatch/internal/cmd/base"
	"github.com/formwatch/formwatch/internal/monitor"
)

type Command struct {
	*base.Command

	flagTitle string
	flagURL   string
}

func (c *Command) Synopsis() string {
	return "Manually correct a source's title or URL"
}

func (c *Command) Help() string {
	return `Usage: formwatch edit [-title=...] [-url=...] <source-id>

  Overrides a source's title or URL by hand. The source's latest change
  record is flagged as manually intervened so automation reporting stays
  honest.`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("edit")
	f.StringVar(&c.flagTitle, "title", "", "corrected title")
	f.StringVar(&c.flagURL, "url", "", "corrected document URL")
	if err := f.Parse(args); err != nil {
		return 1
	}
	if len(f.Args()) != 1 {
		c.UI.Error("exactly one source id is required")
		return 1
	}
	if c.flagTitle == "" && c.flagURL == "" {
		c.UI.Error("nothing to change: pass -title or -url")
		return 1
	}
	id, err := strconv.ParseUint(f.Args()[0], 10, 64)
	if err != nil {
		c.UI.Error(fmt.Sprintf("invalid source id %q", f.Args()[0]))
		return 1
	}

	engine, _, err := c.Engine(context.Background())
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	source, err := engine.EditSource(uint(id), monitor.SourceEdit{
		Title: c.flagTitle,
		URL:   c.flagURL,
	})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(fmt.Sprintf("source %d updated: %s (%s)", source.ID, source.Title, source.URL))
	return 0
}
