// Package register implements the command that adds a source to the
// registry.
package register

import (
	"context"
	"fmt"

	"github.com/formwatch/formwatch/internal/cmd/base"
)

type Command struct {
	*base.Command

	flagName    string
	flagListing string
	flagCheck   bool
}

func (c *Command) Synopsis() string {
	return "Register a PDF URL for monitoring"
}

func (c *Command) Help() string {
	return `Usage: formwatch register [options] <url>

  Adds the document at <url> to the monitored registry. The baseline version
  is taken on the next cycle, or immediately with -check.

Options:
  -name=<name>      Display name for the source (defaults to the URL)
  -listing=<url>    Listing page crawled when the document URL stops
                    resolving (defaults to the URL's parent path)
  -check            Take the baseline version now`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("register")
	f.StringVar(&c.flagName, "name", "", "display name")
	f.StringVar(&c.flagListing, "listing", "", "listing page URL")
	f.BoolVar(&c.flagCheck, "check", false, "take the baseline now")
	if err := f.Parse(args); err != nil {
		return 1
	}
	if len(f.Args()) != 1 {
		c.UI.Error("exactly one URL is required")
		return 1
	}
	url := f.Args()[0]
	name := c.flagName
	if name == "" {
		name = url
	}

	ctx := context.Background()
	engine, _, err := c.Engine(ctx)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	source, err := engine.Register(name, url, c.flagListing)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(fmt.Sprintf("registered source %d: %s", source.ID, source.URL))

	if c.flagCheck {
		outcome, err := engine.ProcessSource(ctx, source)
		if err != nil {
			c.UI.Error(fmt.Sprintf("baseline failed: %v", err))
			return 1
		}
		c.UI.Output(fmt.Sprintf("baseline taken (%s)", outcome))
	}
	return 0
}
