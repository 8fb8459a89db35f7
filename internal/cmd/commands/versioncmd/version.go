// Package versioncmd implements the version command.
package versioncmd

import (
	"github.com/mitchellh/cli"

	"github.com/formwatch/formwatch/internal/version"
)

type Command struct {
	UI cli.Ui
}

func (c *Command) Synopsis() string {
	return "Print the formwatch version"
}

func (c *Command) Help() string {
	return "Usage: formwatch version"
}

func (c *Command) Run(args []string) int {
	c.UI.Output("formwatch " + version.Version)
	return 0
}
