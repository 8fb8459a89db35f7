package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/formwatch/formwatch/internal/cmd/base"
	"github.com/formwatch/formwatch/internal/cmd/commands/approve"
	"github.com/formwatch/formwatch/internal/cmd/commands/download"
	"github.com/formwatch/formwatch/internal/cmd/commands/edit"
	"github.com/formwatch/formwatch/internal/cmd/commands/history"
	"github.com/formwatch/formwatch/internal/cmd/commands/pending"
	"github.com/formwatch/formwatch/internal/cmd/commands/register"
	"github.com/formwatch/formwatch/internal/cmd/commands/run"
	"github.com/formwatch/formwatch/internal/cmd/commands/versioncmd"
)

// Commands is the CLI command factory map.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	newBase := func() *base.Command {
		return &base.Command{UI: ui, Log: log}
	}

	Commands = map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &run.Command{Command: newBase()}, nil
		},
		"register": func() (cli.Command, error) {
			return &register.Command{Command: newBase()}, nil
		},
		"pending": func() (cli.Command, error) {
			return &pending.Command{Command: newBase()}, nil
		},
		"download": func() (cli.Command, error) {
			return &download.Command{Command: newBase()}, nil
		},
		"approve": func() (cli.Command, error) {
			return &approve.Command{Command: newBase()}, nil
		},
		"history": func() (cli.Command, error) {
			return &history.Command{Command: newBase()}, nil
		},
		"edit": func() (cli.Command, error) {
			return &edit.Command{Command: newBase()}, nil
		},
		"version": func() (cli.Command, error) {
			return &versioncmd.Command{UI: ui}, nil
		},
	}
}
