// Package approve implements the command that approves a reviewed change.
package approve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/formwatch/formwatch/internal/cmd/base"
	"github.com/formwatch/formwatch/pkg/models"
)

type Command struct {
	*base.Command

	flagBy string
}

func (c *Command) Synopsis() string {
	return "Approve a downloaded change record"
}

func (c *Command) Help() string {
	return `Usage: formwatch approve [-by=<reviewer>] <change-id>

  Marks a change as approved. Fails if the change has never been
  downloaded. Approving an already approved change is a no-op.`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("approve")
	f.StringVar(&c.flagBy, "by", "", "reviewer identity (defaults to $USER)")
	if err := f.Parse(args); err != nil {
		return 1
	}
	if len(f.Args()) != 1 {
		c.UI.Error("exactly one change id is required")
		return 1
	}
	id, err := strconv.ParseUint(f.Args()[0], 10, 64)
	if err != nil {
		c.UI.Error(fmt.Sprintf("invalid change id %q", f.Args()[0]))
		return 1
	}

	approver := c.flagBy
	if approver == "" {
		approver = os.Getenv("USER")
	}

	engine, _, err := c.Engine(context.Background())
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	record, err := engine.ApproveChange(uint(id), approver)
	if err != nil {
		var precondition *models.PreconditionError
		if errors.As(err, &precondition) {
			c.UI.Error(fmt.Sprintf("cannot approve: %s. Run 'formwatch download %d' first.", precondition.Reason, id))
		} else {
			c.UI.Error(err.Error())
		}
		return 1
	}
	c.UI.Output(fmt.Sprintf("change %d approved by %s", record.ID, record.ApprovedBy))
	return 0
}
