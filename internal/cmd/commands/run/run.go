// Package run implements the command that executes one monitoring cycle.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/formwatch/formwatch/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Run one monitoring cycle over all enabled sources"
}

func (c *Command) Help() string {
	return `Usage: formwatch run [-config=formwatch.yaml]

  Checks every enabled source for changes, records new versions and change
  records, and prints the cycle tally. Interrupting with Ctrl-C finishes the
  sources already in flight and records the cycle as partial.`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("run")
	if err := f.Parse(args); err != nil {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _, err := c.Engine(ctx)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	cycle, err := engine.RunCycle(ctx)
	if cycle != nil {
		c.UI.Output(fmt.Sprintf("cycle %d: %d sources", cycle.ID, cycle.TotalSources))
		c.UI.Output(fmt.Sprintf("  baseline:     %d", cycle.Baseline))
		c.UI.Output(fmt.Sprintf("  unchanged:    %d", cycle.Unchanged))
		c.UI.Output(fmt.Sprintf("  binary only:  %d", cycle.BinaryOnly))
		c.UI.Output(fmt.Sprintf("  text changed: %d", cycle.TextChanged))
		c.UI.Output(fmt.Sprintf("  relocated:    %d", cycle.Relocated))
		c.UI.Output(fmt.Sprintf("  not found:    %d", cycle.NotFound))
		c.UI.Output(fmt.Sprintf("  errors:       %d", cycle.Errors))
		if cycle.Partial {
			c.UI.Warn("cycle was interrupted; remaining sources were skipped")
		}
	}
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
