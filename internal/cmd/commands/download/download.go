// Package download implements the command that retrieves the document
// behind a change record.
package download

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/formwatch/formwatch/internal/cmd/base"
)

type Command struct {
	*base.Command

	flagOutput string
}

func (c *Command) Synopsis() string {
	return "Download the document behind a change record"
}

func (c *Command) Help() string {
	return `Usage: formwatch download [-o=file.pdf] <change-id>

  Writes the raw document bytes of the change's new version to disk and
  records the download. A change must be downloaded at least once before it
  can be approved.`
}

func (c *Command) Run(args []string) int {
	f := c.FlagSet("download")
	f.StringVar(&c.flagOutput, "o", "", "output path (defaults to a name derived from the form)")
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

	engine, _, err := c.Engine(context.Background())
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	download, err := engine.DownloadChange(context.Background(), uint(id))
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	out := c.flagOutput
	if out == "" {
		out = download.Filename
	}
	if err := os.WriteFile(out, download.Data, 0o644); err != nil {
		c.UI.Error(fmt.Sprintf("failed to write %s: %v", out, err))
		return 1
	}
	c.UI.Output(fmt.Sprintf("wrote %s (%d bytes), change %d is now %s",
		out, len(download.Data), download.Record.ID, download.Record.ReviewState))
	return 0
}
